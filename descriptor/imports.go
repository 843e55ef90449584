package descriptor

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
)

// Imports is the imports descriptor. A nil map means the table is absent.
// Keys keep their case, since they become Go identifiers.
type Imports struct {
	Offsets            map[string]string            `json:"offsets,omitempty"`
	MemorySignatures   map[string]string            `json:"memory_signature,omitempty"`
	FunctionSignatures map[string]FunctionSignature `json:"function_signatures,omitempty"`
}

type FunctionSignature struct {
	Arguments []Argument `json:"arguments"`
	Return    string     `json:"return"`
}

// Argument is encoded as a two element array: ["name", "type"].
type Argument struct {
	Name string
	Type string
}

func (a *Argument) UnmarshalJSON(b []byte) error {
	var pair []string
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	} else if len(pair) != 2 {
		return fmt.Errorf("argument must be a [name, type] pair, got %d elements", len(pair))
	}
	a.Name, a.Type = pair[0], pair[1]
	return nil
}

func (a Argument) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{a.Name, a.Type})
}

func LoadImports(path string) (*Imports, []byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "unable to open imports descriptor")
	}
	imp, err := ParseImports(raw)
	if err != nil {
		return nil, nil, err
	}
	return imp, raw, nil
}

func ParseImports(raw []byte) (*Imports, error) {
	var imp Imports
	if err := json.Unmarshal(raw, &imp); err != nil {
		return nil, errors.Wrap(err, "unable to parse imports descriptor")
	}
	return &imp, nil
}
