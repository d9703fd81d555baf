// Copyright 2019 eBay Inc.
// Primary authors: Simon Fell, Diego Ongaro,
//                  Raymond Kroeker, and Sathish Kandasamy.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_InvokeN(t *testing.T) {
	var sum int64
	err := InvokeN(context.Background(), 10, func(ctx context.Context, i int) error {
		atomic.AddInt64(&sum, int64(i))
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(45), sum)
}

func Test_Invoke_firstError(t *testing.T) {
	errBoom := errors.New("boom")
	err := Invoke(context.Background(),
		func(ctx context.Context) error {
			return errBoom
		},
		func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})
	assert.Equal(t, errBoom, err)
}
