package featureflag

import (
	"sort"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

const ErrTypeUnknownFlag = "unknown_feature_flag"

// FeatureFlag is the set of enabled flags.
type FeatureFlag map[Flag]struct{}

// New returns the feature flags enabled by the given names. Blank names are
// ignored.
func New(flags []string) FeatureFlag {
	featureFlag := make(FeatureFlag, len(flags))
	for _, f := range flags {
		if f = strings.TrimSpace(f); f != "" {
			featureFlag[Flag(f)] = struct{}{}
		}
	}
	return featureFlag
}

func (f FeatureFlag) IsSet(flag Flag) bool {
	_, ok := f[flag]
	return ok
}

// IfSet calls do when flag is enabled.
func (f FeatureFlag) IfSet(flag Flag, do func()) {
	if f.IsSet(flag) {
		do()
	}
}

// IfNotSet calls do when flag is disabled.
func (f FeatureFlag) IfNotSet(flag Flag, do func()) {
	if !f.IsSet(flag) {
		do()
	}
}

// Validate returns an error when a flag is not one this server knows.
func (f FeatureFlag) Validate() error {
	for flag := range f {
		if _, ok := knownFlags[flag]; !ok {
			return errors.New("unknown feature flag").
				WithType(ErrTypeUnknownFlag).
				WithTag("flag", string(flag))
		}
	}
	return nil
}

// Names returns the enabled flags in alphabetical order.
func (f FeatureFlag) Names() []string {
	names := make([]string, 0, len(f))
	for flag := range f {
		names = append(names, string(flag))
	}
	sort.Strings(names)
	return names
}
