// Copyright 2014 The Cayley Authors. All rights reserved.
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

package ids

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDirectionString(t *testing.T) {
	require.Equal(t, "OUT", Out.String())
	require.Equal(t, "IN", In.String())
	require.Equal(t, "INVALID", DirInvalid.String())
	require.Equal(t, "INVALID", Direction(99).String())
}

func TestDirectionOpposite(t *testing.T) {
	require.Equal(t, In, Out.Opposite())
	require.Equal(t, Out, In.Opposite())
	require.Equal(t, DirInvalid, DirInvalid.Opposite())
}

func TestIsVertexAndIsTPID(t *testing.T) {
	require.True(t, IsVertex(DefaultThreshold, DefaultThreshold))
	require.True(t, IsVertex(DefaultThreshold+1, DefaultThreshold))
	require.False(t, IsVertex(DefaultThreshold-1, DefaultThreshold))

	require.True(t, IsTPID(DefaultThreshold-1, DefaultThreshold))
	require.False(t, IsTPID(DefaultThreshold, DefaultThreshold))
}

func TestReservedSentinels(t *testing.T) {
	require.Equal(t, ID(0), PredicateID)
	require.Equal(t, ID(1), TypeID)
	require.NotEqual(t, PredicateID, TypeID)
}
