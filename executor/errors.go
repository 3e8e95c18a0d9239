// Copyright 2019 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package executor

import (
	"github.com/ad-freiburg/qlever-sub009/executor/aggfuncs"
	"github.com/pingcap/parser/mysql"
	"github.com/pingcap/parser/terror"
)

// Error codes that are not mapping to mysql error codes.
const (
	codeContractViolation     terror.ErrCode = 8201
	codeUnsupportedQueryShape terror.ErrCode = 8202
)

// Error instances.
var (
	// ErrContractViolation is returned when an operator is called with inputs
	// that break its preconditions.
	ErrContractViolation = terror.ClassExecutor.New(codeContractViolation, "contract violation: %s")
	// ErrUnsupportedQueryShape is returned for queries the engine refuses to
	// compute although they are well formed.
	ErrUnsupportedQueryShape = terror.ClassExecutor.New(codeUnsupportedQueryShape, "unsupported query: %s")
)

func init() {
	// Map error codes to mysql error codes.
	tableMySQLErrCodes := map[terror.ErrCode]uint16{
		codeContractViolation:     mysql.ErrUnknown,
		codeUnsupportedQueryShape: mysql.ErrNotSupportedYet,
		mysql.ErrQueryInterrupted: mysql.ErrQueryInterrupted,

		aggfuncs.ErrVocabularyMissing.Code(): mysql.ErrUnknown,
	}
	terror.ErrClassToMySQLCodes[terror.ClassExecutor] = tableMySQLErrCodes
}
