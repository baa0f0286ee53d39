/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"editpdfs/internal/domain"

	gojsonschema "github.com/xeipuuv/gojsonschema"
)

//go:embed session.schema.json
var sessionSchemaJSON []byte

// ErrInvalidSession is returned for session documents that do not match the schema.
var ErrInvalidSession = errors.New("invalid session document")

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func sessionSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(sessionSchemaJSON))
	})
	return schema, schemaErr
}

// ValidateSessionJSON checks a serialized session against the embedded schema.
func ValidateSessionJSON(data []byte) error {
	s, err := sessionSchema()
	if err != nil {
		return fmt.Errorf("load session schema: %w", err)
	}
	res, err := s.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidSession, strings.Join(msgs, "; "))
}

// MarshalSession encodes st in its canonical form and validates it.
// Nil collections are written as empty ones.
func MarshalSession(st domain.SessionState) ([]byte, error) {
	if st.Version == 0 {
		st.Version = domain.SessionStateVersion
	}
	if st.Objects == nil {
		st.Objects = []domain.EditorObject{}
	}
	if st.TextEdits == nil {
		st.TextEdits = []domain.TextEdit{}
	}
	if st.Pages.Order == nil {
		st.Pages.Order = []int{}
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	if err := ValidateSessionJSON(data); err != nil {
		return nil, err
	}
	return data, nil
}

// UnmarshalSession validates data and decodes it.
func UnmarshalSession(data []byte) (domain.SessionState, error) {
	var st domain.SessionState
	if err := ValidateSessionJSON(data); err != nil {
		return st, err
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if st.Version > domain.SessionStateVersion {
		return st, fmt.Errorf("%w: version %d is newer than supported %d", ErrInvalidSession, st.Version, domain.SessionStateVersion)
	}
	return st, nil
}
