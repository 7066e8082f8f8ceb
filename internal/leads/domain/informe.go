package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	minResumenLength     = 10
	minPropuestaValorLen = 50
	keyPresenciaOnline   = "presencia_online"
	keySeguidoresAprox   = "seguidores_aprox"
)

// FollowerCounts are approximate follower numbers per platform; nil means unknown.
type FollowerCounts struct {
	Instagram *float64 `json:"instagram"`
	Facebook  *float64 `json:"facebook"`
	LinkedIn  *float64 `json:"linkedin"`
	Twitter   *float64 `json:"twitter"`
}

// OnlinePresence summarises the web and social footprint of a business.
type OnlinePresence struct {
	WebsiteTitle string         `json:"website_titulo"`
	Followers    FollowerCounts `json:"seguidores_aprox"`
}

// Informe is the structured investigation report attached to a lead detail.
type Informe struct {
	Resumen                 string         `json:"resumen"`
	Servicios               []string       `json:"servicios"`
	PresenciaOnline         OnlinePresence `json:"presencia_online"`
	LogrosYPrensa           []string       `json:"logros_y_prensa"`
	PuntosDolor             []string       `json:"puntos_dolor"`
	ProblemasAutomatizables []string       `json:"problemas_automatizables"`
	PropuestaValor          string         `json:"propuesta_valor"`
	Fuentes                 []string       `json:"fuentes"`
}

// SchemaError lists every rule an Informe payload broke.
type SchemaError struct {
	Issues []string
}

func (e *SchemaError) Error() string {
	return "informe failed validation: " + strings.Join(e.Issues, "; ")
}

var (
	informeKeys  = []string{"resumen", "servicios", keyPresenciaOnline, "logros_y_prensa", "puntos_dolor", "problemas_automatizables", "propuesta_valor", "fuentes"}
	presenceKeys = []string{"website_titulo", keySeguidoresAprox}
	followerKeys = []string{"instagram", "facebook", "linkedin", "twitter"}
)

// ParseInforme decodes raw as a single JSON object and validates it against the
// report schema for website. Unknown fields and missing keys are rejected.
func ParseInforme(raw []byte, website string) (*Informe, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, fmt.Errorf("informe is not a JSON object: %w", err)
	}

	var issues []string
	issues = append(issues, missingKeys(top, "", informeKeys, false)...)
	if presence, ok := top[keyPresenciaOnline]; ok && !isNull(presence) {
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(presence, &nested); err != nil {
			issues = append(issues, keyPresenciaOnline+": must be an object")
		} else {
			issues = append(issues, missingKeys(nested, keyPresenciaOnline+".", presenceKeys, false)...)
			if followers, ok := nested[keySeguidoresAprox]; ok && !isNull(followers) {
				var counts map[string]json.RawMessage
				if err := json.Unmarshal(followers, &counts); err != nil {
					issues = append(issues, keyPresenciaOnline+"."+keySeguidoresAprox+": must be an object")
				} else {
					issues = append(issues, missingKeys(counts, keyPresenciaOnline+"."+keySeguidoresAprox+".", followerKeys, true)...)
				}
			}
		}
	}
	if len(issues) > 0 {
		return nil, &SchemaError{Issues: issues}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var informe Informe
	if err := dec.Decode(&informe); err != nil {
		return nil, &SchemaError{Issues: []string{err.Error()}}
	}

	if err := informe.Validate(website); err != nil {
		return nil, err
	}
	return &informe, nil
}

// Validate applies the value rules of the report schema. When website is not
// empty, one of the sources must be that website after normalization.
func (i *Informe) Validate(website string) error {
	var issues []string
	if utf8.RuneCountInString(i.Resumen) < minResumenLength {
		issues = append(issues, fmt.Sprintf("resumen: must be at least %d characters", minResumenLength))
	}
	if utf8.RuneCountInString(i.PropuestaValor) < minPropuestaValorLen {
		issues = append(issues, fmt.Sprintf("propuesta_valor: must be at least %d characters", minPropuestaValorLen))
	}
	if len(i.Fuentes) == 0 {
		issues = append(issues, "fuentes: must include at least one source (the analyzed website)")
	} else if website != "" && !i.CitesWebsite(website) {
		issues = append(issues, fmt.Sprintf("fuentes: must include the analyzed website %s", website))
	}
	if len(issues) > 0 {
		return &SchemaError{Issues: issues}
	}
	return nil
}

// CitesWebsite reports whether any source points at website or a page under it.
func (i *Informe) CitesWebsite(website string) bool {
	target := NormalizeWebsite(website)
	if target == "" {
		return false
	}
	for _, src := range i.Fuentes {
		n := NormalizeWebsite(src)
		if n == target || strings.HasPrefix(n, target+"/") {
			return true
		}
	}
	return false
}

func missingKeys(obj map[string]json.RawMessage, prefix string, keys []string, nullable bool) []string {
	var issues []string
	for _, key := range keys {
		val, ok := obj[key]
		switch {
		case !ok:
			issues = append(issues, prefix+key+": required")
		case !nullable && isNull(val):
			issues = append(issues, prefix+key+": must not be null")
		}
	}
	return issues
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
