package feedback

import (
	"fmt"

	"github.com/san-kum/galevo/internal/dynamo"
	"gopkg.in/yaml.v3"
)

// Model names one of the parametrized outflow laws.
type Model int

const (
	FIRE Model = iota
	GALFORM
	LGALAXIES
	LAGOS13
	LAGOS13Trunc
	GALFORMFIRE
)

var modelNames = map[Model]string{
	FIRE:         "FIRE",
	GALFORM:      "GALFORM",
	LGALAXIES:    "LGALAXIES",
	LAGOS13:      "LAGOS13",
	LAGOS13Trunc: "LAGOS13Trunc",
	GALFORMFIRE:  "GALFORMFIRE",
}

// Models lists every supported law in declaration order.
func Models() []Model {
	return []Model{FIRE, GALFORM, LGALAXIES, LAGOS13, LAGOS13Trunc, GALFORMFIRE}
}

func (m Model) String() string {
	if name, ok := modelNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Model(%d)", int(m))
}

// ParseModel resolves a law by its exact name.
func ParseModel(name string) (Model, error) {
	for m, n := range modelNames {
		if n == name {
			return m, nil
		}
	}
	return 0, dynamo.ConfigError("stellar_feedback.model", name,
		"Supported values are FIRE, GALFORM, LGALAXIES, LAGOS13, LAGOS13Trunc and GALFORMFIRE")
}

func (m Model) MarshalYAML() (interface{}, error) {
	return m.String(), nil
}

func (m *Model) UnmarshalYAML(value *yaml.Node) error {
	var name string
	if err := value.Decode(&name); err != nil {
		return err
	}
	parsed, err := ParseModel(name)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// UnmarshalText lets environment overrides name a law.
func (m *Model) UnmarshalText(text []byte) error {
	parsed, err := ParseModel(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Variant selects the outflow strategy.
type Variant string

const (
	VariantParametrized Variant = "parametrized"
	VariantPowerLaw     Variant = "power_law"
)

func ParseVariant(name string) (Variant, error) {
	switch Variant(name) {
	case "", VariantParametrized:
		return VariantParametrized, nil
	case VariantPowerLaw:
		return VariantPowerLaw, nil
	}
	return "", dynamo.ConfigError("stellar_feedback.variant", name, "Supported values are parametrized and power_law")
}
