package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnabled_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		enabled Enabled
		wantErr bool
	}{
		{
			name:    "package_file alone is fine",
			enabled: Enabled{Name: "eslint", PackageFile: "package.json"},
		},
		{
			name:    "extra_packages alone is fine",
			enabled: Enabled{Name: "eslint", ExtraPackages: []ExtraPackage{{Name: "eslint-plugin-react", Version: "7.34.0"}}},
		},
		{
			name: "package_file and extra_packages conflict",
			enabled: Enabled{
				Name:          "eslint",
				PackageFile:   "package.json",
				ExtraPackages: []ExtraPackage{{Name: "eslint-plugin-react", Version: "7.34.0"}},
			},
			wantErr: true,
		},
		{
			name:    "package_filters without package_file is invalid",
			enabled: Enabled{Name: "rubocop", PackageFilters: []string{"*.rb"}},
			wantErr: true,
		},
		{
			name:    "package_filters with package_file is fine",
			enabled: Enabled{Name: "rubocop", PackageFile: "Gemfile", PackageFilters: []string{"*.rb"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.enabled.Validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestMergeDuplicates_LastFieldWinsExceptSentinelVersion(t *testing.T) {
	t.Parallel()

	raw := []Enabled{
		{Name: "rubocop", Mode: ModeBlock, Version: "1.60.0"},
		{Name: "rubocop", Mode: ModeComment, Version: VersionLatest},
	}

	merged := MergeDuplicates(raw)
	require.Len(t, merged, 1)

	assert.Equal(t, ModeComment, merged[0].Mode, "non-version fields follow last-occurrence-wins")
	assert.Equal(t, "1.60.0", merged[0].Version, "an earlier literal version beats a later sentinel")
}

func TestMergeDuplicates_LaterLiteralWins(t *testing.T) {
	t.Parallel()

	raw := []Enabled{
		{Name: "eslint", Version: "8.0.0"},
		{Name: "eslint", Version: "9.0.0"},
	}

	merged := MergeDuplicates(raw)
	require.Len(t, merged, 1)
	assert.Equal(t, "9.0.0", merged[0].Version)
}

func TestMergeDuplicates_GroupsByNameAndPrefix(t *testing.T) {
	t.Parallel()

	raw := []Enabled{
		{Name: "eslint", Prefix: "frontend", Version: "9.0.0"},
		{Name: "eslint", Prefix: "backend", Version: "8.0.0"},
	}

	merged := MergeDuplicates(raw)
	require.Len(t, merged, 2)
	assert.Equal(t, "backend", merged[0].Prefix, "results are sorted by (name, prefix, version)")
	assert.Equal(t, "frontend", merged[1].Prefix)
}

func TestResolveSentinel(t *testing.T) {
	t.Parallel()

	def := Definition{Name: "rubocop", LatestVersion: "1.65.0", KnownGoodVersion: "1.60.0"}

	latest, err := ResolveSentinel(VersionLatest, def)
	require.NoError(t, err)
	assert.Equal(t, "1.65.0", latest)

	knownGood, err := ResolveSentinel(VersionKnownGood, def)
	require.NoError(t, err)
	assert.Equal(t, "1.60.0", knownGood)

	literal, err := ResolveSentinel("1.2.3", def)
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", literal)

	_, err = ResolveSentinel(VersionLatest, Definition{Name: "rubocop"})
	require.Error(t, err)
}
