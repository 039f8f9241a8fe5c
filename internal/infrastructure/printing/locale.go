package printing

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localeFS embed.FS

// FallbackLanguage is used when a request language has no bundle.
var FallbackLanguage = language.English

// Bundle holds the translated captions of one language. Keys missing from
// the bundle fall back to the English bundle and finally to the key itself.
type Bundle struct {
	tag      language.Tag
	labels   map[string]string
	fallback *Bundle
}

// Label returns the caption for key.
func (b *Bundle) Label(key string) string {
	if b == nil {
		return key
	}
	if v, ok := b.labels[key]; ok {
		return v
	}
	if b.fallback != nil {
		return b.fallback.Label(key)
	}
	return key
}

// Title upper-cases the first letter of each word using the casing rules
// of the bundle language. The rest of each word is kept as written.
func (b *Bundle) Title(s string) string {
	// Casers keep state and are not safe for concurrent use.
	return cases.Title(b.tag, cases.NoLower).String(s)
}

// Lang returns the BCP 47 tag of the bundle.
func (b *Bundle) Lang() string {
	return b.tag.String()
}

// Len returns the number of captions defined directly in the bundle.
func (b *Bundle) Len() int {
	return len(b.labels)
}

// LocaleRegistry resolves request languages to caption bundles.
type LocaleRegistry struct {
	tags    []language.Tag
	bundles []*Bundle
	matcher language.Matcher
}

// LoadLocales loads the embedded locale bundles.
func LoadLocales() (*LocaleRegistry, error) {
	return NewLocaleRegistry(localeFS, "locales")
}

// NewLocaleRegistry loads every <lang>.yaml file in dir. The fallback
// language must be present.
func NewLocaleRegistry(fsys fs.FS, dir string) (*LocaleRegistry, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read locale directory %s: %w", dir, err)
	}

	parsed := make(map[language.Tag]map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || path.Ext(name) != ".yaml" {
			continue
		}
		tag, err := language.Parse(strings.TrimSuffix(name, ".yaml"))
		if err != nil {
			return nil, fmt.Errorf("invalid locale file name %s: %w", name, err)
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read locale %s: %w", name, err)
		}
		labels, err := parseLocale(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse locale %s: %w", name, err)
		}
		parsed[tag] = labels
	}

	base, ok := parsed[FallbackLanguage]
	if !ok {
		return nil, fmt.Errorf("locale bundle for %s not found in %s", FallbackLanguage, dir)
	}

	r := &LocaleRegistry{}
	fallback := newBundle(FallbackLanguage, base, nil)
	r.tags = append(r.tags, FallbackLanguage)
	r.bundles = append(r.bundles, fallback)

	others := make([]language.Tag, 0, len(parsed)-1)
	for tag := range parsed {
		if tag != FallbackLanguage {
			others = append(others, tag)
		}
	}
	sort.Slice(others, func(i, j int) bool { return others[i].String() < others[j].String() })
	for _, tag := range others {
		r.tags = append(r.tags, tag)
		r.bundles = append(r.bundles, newBundle(tag, parsed[tag], fallback))
	}

	// The first tag is the matcher's default for unknown languages.
	r.matcher = language.NewMatcher(r.tags)
	return r, nil
}

func newBundle(tag language.Tag, labels map[string]string, fallback *Bundle) *Bundle {
	return &Bundle{tag: tag, labels: labels, fallback: fallback}
}

// Resolve returns the best bundle for lang, which may be a single tag
// ("es", "fr-CA") or an Accept-Language header. Empty or unknown
// languages resolve to English.
func (r *LocaleRegistry) Resolve(lang string) *Bundle {
	if strings.TrimSpace(lang) == "" {
		return r.bundles[0]
	}
	_, index := language.MatchStrings(r.matcher, lang)
	if index < 0 || index >= len(r.bundles) {
		return r.bundles[0]
	}
	return r.bundles[index]
}

// Languages lists the loaded languages, fallback first.
func (r *LocaleRegistry) Languages() []string {
	out := make([]string, len(r.tags))
	for i, tag := range r.tags {
		out[i] = tag.String()
	}
	return out
}

// parseLocale decodes a nested YAML mapping into dot-joined keys.
func parseLocale(data []byte) (map[string]string, error) {
	var root map[string]interface{}
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	labels := make(map[string]string)
	flatten("", root, labels)
	return labels, nil
}

func flatten(prefix string, node map[string]interface{}, out map[string]string) {
	for key, value := range node {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		switch v := value.(type) {
		case map[string]interface{}:
			flatten(full, v, out)
		case nil:
		default:
			out[full] = fmt.Sprint(v)
		}
	}
}
