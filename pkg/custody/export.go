// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-keycustody.
//
// go-keycustody is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package custody

import (
	"github.com/jeremyhahn/go-keycustody/pkg/keypair"
	"github.com/jeremyhahn/go-keycustody/pkg/metrics"
	"github.com/jeremyhahn/go-keycustody/pkg/types"
)

// ExportPrivateKey re-encodes the session's private key as an
// encrypted PKCS#8 PEM block under an export password, for interchange
// with external tooling. The plaintext never leaves process memory.
func (s *Service) ExportPrivateKey(session *Session, exportPassword types.Password) ([]byte, error) {
	if session == nil {
		return nil, ErrSessionClosed
	}
	if exportPassword == nil {
		return nil, types.ErrEmptyPassword
	}

	password := exportPassword.Bytes()
	if password == nil {
		return nil, types.ErrPasswordZeroed
	}
	defer types.Zeroize(password)

	var exported []byte
	err := session.WithPrivateKey(func(privateKeyPEM []byte) error {
		var expErr error
		exported, expErr = keypair.ExportEncryptedPKCS8(privateKeyPEM, password)
		return expErr
	})
	if err != nil {
		metrics.RecordOperation(metrics.OpExport, session.Method().String(), metrics.StatusError)
		return nil, err
	}

	metrics.RecordOperation(metrics.OpExport, session.Method().String(), metrics.StatusSuccess)
	return exported, nil
}
