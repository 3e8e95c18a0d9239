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

package aggfuncs

import (
	"github.com/pingcap/parser/terror"
)

const codeVocabularyMissing terror.ErrCode = 8203

// ErrVocabularyMissing is returned when GROUP_CONCAT meets a VocabIndex but
// the Env has no Vocabulary to resolve it.
var ErrVocabularyMissing = terror.ClassExecutor.New(codeVocabularyMissing, "GROUP_CONCAT of %s without a vocabulary")
