package config

import (
	"fmt"

	"github.com/MrWong99/voicenav/internal/transcript/phonetic"
	"github.com/MrWong99/voicenav/internal/voicecmd"
	"github.com/MrWong99/voicenav/pkg/textmatch"
)

// ResolverSettings builds the resolver settings described by cfg.
func (c *Config) ResolverSettings() (voicecmd.Settings, error) {
	rules, err := c.Corrections.Compile()
	if err != nil {
		return voicecmd.Settings{}, fmt.Errorf("config: %w: %w", ErrInvalidRule, err)
	}
	s := voicecmd.Settings{
		Match:     c.Matcher.Options(),
		Corrector: textmatch.NewCorrector(rules...),
		Extra:     c.Vocabulary.ExtraPhrases(),
	}
	if p := c.Matcher.Phonetic; p.Enabled {
		var opts []phonetic.Option
		if p.PhoneticThreshold > 0 {
			opts = append(opts, phonetic.WithPhoneticThreshold(p.PhoneticThreshold))
		}
		if p.FuzzyThreshold > 0 {
			opts = append(opts, phonetic.WithFuzzyThreshold(p.FuzzyThreshold))
		}
		s.Phonetic = phonetic.New(opts...)
	}
	return s, nil
}
