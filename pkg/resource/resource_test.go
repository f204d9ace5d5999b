// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package resource

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/ads/pkg/log"
)

func TestAntiTargeting(t *testing.T) {
	require := require.New(t)

	info, err := ParseAntiTargeting([]byte(`{"version":1,"sites":{"cs-1":["https://www.competitor.com","https://other.org/path"]}}`))
	require.NoError(err)

	require.True(info.IsVisited("cs-1", []string{"https://competitor.com/landing"}))
	require.True(info.IsVisited("cs-1", []string{"http://other.org"}))
	require.False(info.IsVisited("cs-1", []string{"https://unrelated.net"}))
	require.False(info.IsVisited("cs-2", []string{"https://competitor.com"}))
	require.False(info.IsVisited("cs-1", nil))
}

func TestParseAntiTargetingErrors(t *testing.T) {
	for name, doc := range map[string]string{
		"malformed":     `{"version":`,
		"wrong version": `{"version":2,"sites":{}}`,
		"no sites":      `{"version":1}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseAntiTargeting([]byte(doc))
			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr))
			require.Equal(t, "anti-targeting", parseErr.Resource)
		})
	}
}

func TestSubdivision(t *testing.T) {
	require := require.New(t)

	info, err := ParseSubdivision([]byte(`{"country":"us","region":"ca"}`))
	require.NoError(err)
	require.Equal("US-CA", info.Code())

	info, err = ParseSubdivision([]byte(`{"country":"GB","region":"ENG"}`))
	require.NoError(err)
	require.Empty(info.Code())

	_, err = ParseSubdivision([]byte(`{"region":"CA"}`))
	require.Error(err)
}

func TestManagerKeepsPreviousOnError(t *testing.T) {
	require := require.New(t)

	m := NewManager("anti-targeting", ParseAntiTargeting, log.NoLog)
	_, ok := m.Get()
	require.False(ok)

	require.NoError(m.Load([]byte(`{"version":1,"sites":{"cs-1":["a.com"]}}`)))
	require.Error(m.Load([]byte(`not json`)))

	info, ok := m.Get()
	require.True(ok)
	require.Equal([]string{"a.com"}, info.Sites["cs-1"])

	path := filepath.Join(t.TempDir(), "anti_targeting.json")
	require.NoError(os.WriteFile(path, []byte(`{"version":1,"sites":{"cs-2":["b.com"]}}`), 0o600))
	require.NoError(m.LoadFile(path))
	info, _ = m.Get()
	require.Contains(info.Sites, "cs-2")

	require.Error(m.LoadFile(filepath.Join(t.TempDir(), "missing.json")))
	info, _ = m.Get()
	require.Contains(info.Sites, "cs-2")
}
