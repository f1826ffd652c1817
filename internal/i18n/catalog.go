// Package i18n holds the user-facing message catalog. The platform ships a single
// Arabic locale; keys missing from it render as the key itself.
package i18n

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed messages.ar.yaml
var arabic []byte

type Catalog struct {
	locale   string
	messages map[string]string
}

// Load returns the catalog for locale. Only "ar" is bundled.
func Load(locale string) (*Catalog, error) {
	if locale != "ar" {
		return nil, fmt.Errorf("i18n: unsupported locale %q", locale)
	}
	messages := map[string]string{}
	if err := yaml.Unmarshal(arabic, &messages); err != nil {
		return nil, fmt.Errorf("i18n: parse %s catalog: %w", locale, err)
	}
	return &Catalog{locale: locale, messages: messages}, nil
}

// MustLoad is Load for the bundled locale; it panics if the embedded file is broken.
func MustLoad() *Catalog {
	c, err := Load("ar")
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) Locale() string { return c.locale }

// T renders the message for key with fmt-style args.
func (c *Catalog) T(key string, args ...any) string {
	msg, ok := c.messages[key]
	if !ok {
		return key
	}
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}
