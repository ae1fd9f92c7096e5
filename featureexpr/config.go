package featureexpr

import (
	"fmt"
	"sort"
	"strings"

	"github.com/funvibe/funbit/pkg/funbit"
)

// Configuration is one concrete assignment of feature flags
type Configuration map[string]bool

// String renders the configuration as "A,!B,C" in name order
func (c Configuration) String() string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		if c[name] {
			parts[i] = name
		} else {
			parts[i] = "!" + name
		}
	}
	return strings.Join(parts, ",")
}

// ParseConfiguration reads "A,!B,C" or "A=1,B=0". Features not mentioned are disabled.
func ParseConfiguration(text string) (Configuration, error) {
	cfg := make(Configuration)
	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, enabled := part, true
		if strings.HasPrefix(part, "!") {
			name, enabled = strings.TrimSpace(part[1:]), false
		} else if i := strings.IndexByte(part, '='); i >= 0 {
			name = strings.TrimSpace(part[:i])
			switch strings.ToLower(strings.TrimSpace(part[i+1:])) {
			case "1", "true", "on", "yes":
				enabled = true
			case "0", "false", "off", "no":
				enabled = false
			default:
				return nil, fmt.Errorf("invalid value for feature %s: %q", name, part[i+1:])
			}
		}
		if !isIdentifier(name) {
			return nil, fmt.Errorf("invalid feature name %q", name)
		}
		cfg[name] = enabled
	}
	return cfg, nil
}

// EncodeConfiguration packs cfg into one bit per declared feature, in
// declaration order, padded to whole bytes. The result is a stable map key.
func (s *Space) EncodeConfiguration(cfg Configuration) ([]byte, error) {
	names := s.Features()
	if len(names) == 0 {
		return []byte{}, nil
	}
	builder := funbit.NewBuilder()
	for _, name := range names {
		var bit int64
		if cfg[name] {
			bit = 1
		}
		funbit.AddInteger(builder, bit, funbit.WithSize(1))
	}
	if pad := padBits(len(names)); pad > 0 {
		funbit.AddInteger(builder, int64(0), funbit.WithSize(uint(pad)))
	}
	bs, err := funbit.Build(builder)
	if err != nil {
		return nil, fmt.Errorf("failed to encode configuration %s: %v", cfg, err)
	}
	return bs.ToBytes(), nil
}

// DecodeConfiguration is the inverse of EncodeConfiguration
func (s *Space) DecodeConfiguration(data []byte) (Configuration, error) {
	names := s.Features()
	cfg := make(Configuration, len(names))
	if len(names) == 0 {
		return cfg, nil
	}
	if want := (len(names) + 7) / 8; len(data) != want {
		return nil, fmt.Errorf("configuration key has %d bytes, expected %d", len(data), want)
	}
	bits := make([]uint, len(names))
	matcher := funbit.NewMatcher()
	for i := range names {
		funbit.Integer(matcher, &bits[i], funbit.WithSize(1))
	}
	var padding uint
	if pad := padBits(len(names)); pad > 0 {
		funbit.Integer(matcher, &padding, funbit.WithSize(uint(pad)))
	}
	if _, err := funbit.Match(matcher, funbit.NewBitStringFromBytes(data)); err != nil {
		return nil, fmt.Errorf("failed to decode configuration key: %v", err)
	}
	for i, name := range names {
		cfg[name] = bits[i] == 1
	}
	return cfg, nil
}

func padBits(n int) int {
	return (8 - n%8) % 8
}
