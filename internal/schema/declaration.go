package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FieldDecl es la declaración externa de un campo.
type FieldDecl struct {
	Name        string      `yaml:"name"`
	Title       string      `yaml:"title"`
	Type        FieldType   `yaml:"type"`
	Nullable    bool        `yaml:"nullable"`
	PrimaryKey  bool        `yaml:"primary_key"`
	Ref         string      `yaml:"ref"`         // entidad referenciada (type: relation)
	Cardinality Cardinality `yaml:"cardinality"` // one | many (default one)
	Constraints `yaml:",inline"`
}

// Declaration es la forma externa de un modelo, tal como la define la
// aplicación host. Es la entrada del introspector.
type Declaration struct {
	Name   string      `yaml:"name"`
	Fields []FieldDecl `yaml:"fields"`

	// Subtipos polimórficos: Discriminator es el nombre del campo base que
	// elige la variante; Variants mapea valor -> campos adicionales.
	Discriminator string                 `yaml:"discriminator"`
	Variants      map[string][]FieldDecl `yaml:"variants"`
}

// declarationsFile es el documento YAML de declaraciones.
type declarationsFile struct {
	Models []Declaration `yaml:"models"`
}

// ParseDeclarations decodifica un documento YAML de declaraciones.
//
//	models:
//	  - name: Article
//	    fields:
//	      - {name: id, type: number, primary_key: true}
//	      - {name: title, type: text, max_length: 200}
//	      - {name: author, type: relation, ref: User}
func ParseDeclarations(b []byte) ([]Declaration, error) {
	var f declarationsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("schema: parse declarations: %w", err)
	}
	return f.Models, nil
}

// LoadDeclarations lee y decodifica el archivo de declaraciones.
func LoadDeclarations(path string) ([]Declaration, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: read declarations: %w", err)
	}
	return ParseDeclarations(b)
}
