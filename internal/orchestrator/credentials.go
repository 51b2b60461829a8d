// Copyright 2025 The Storeforge Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package orchestrator

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// passwordAlphabet sticks to characters that survive --set values and
// shell quoting in chart hooks.
const passwordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%"

const passwordLength = 16

// credentials are the secrets generated for one provisioning run.
// They live in memory for the duration of the sequence and are never
// written to the registry; References is the only part that persists.
type credentials struct {
	AdminUser     string
	AdminPassword string
	DBPassword    string
}

func newCredentials() (credentials, error) {
	adminPassword, err := generatePassword(passwordLength)
	if err != nil {
		return credentials{}, err
	}
	dbPassword, err := generatePassword(passwordLength)
	if err != nil {
		return credentials{}, err
	}
	return credentials{
		AdminUser:     "admin",
		AdminPassword: adminPassword,
		DBPassword:    dbPassword,
	}, nil
}

// References returns the non-sensitive pointers recorded on the store
// record. Anyone holding these can locate the secrets in the cluster
// but cannot read them from the registry.
func (c credentials) References(release string) map[string]string {
	return map[string]string{
		"admin_user":   c.AdminUser,
		"helm_release": release,
	}
}

// Disclose returns the full credential set for one-time delivery to
// the store owner.
func (c credentials) Disclose() map[string]string {
	return map[string]string{
		"admin_user":     c.AdminUser,
		"admin_password": c.AdminPassword,
		"db_password":    c.DBPassword,
	}
}

func generatePassword(length int) (string, error) {
	alphabetSize := big.NewInt(int64(len(passwordAlphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("failed to generate password: %w", err)
		}
		out[i] = passwordAlphabet[n.Int64()]
	}
	return string(out), nil
}
