package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/TimurManjosov/rulesmith/internal/ast"
	"github.com/TimurManjosov/rulesmith/internal/client"
	"github.com/TimurManjosov/rulesmith/internal/rules"
)

// OutputFormat specifies the output format for CLI commands
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatTable, nil
	}
	return "", fmt.Errorf("unsupported format: %s", s)
}

// ruleView is the YAML shape of a rule; the tree is shown as canonical text.
type ruleView struct {
	Name           string   `yaml:"name"`
	Rule           string   `yaml:"rule"`
	Source         string   `yaml:"source"`
	AttributeNames []string `yaml:"attribute_names"`
	Fingerprint    string   `yaml:"fingerprint"`
	UpdatedAt      string   `yaml:"updated_at"`
}

func newRuleView(r rules.Rule) ruleView {
	return ruleView{
		Name:           r.Name,
		Rule:           r.Root.String(),
		Source:         r.Source,
		AttributeNames: r.AttributeNames,
		Fingerprint:    r.Fingerprint,
		UpdatedAt:      r.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// PrintRules outputs rules in the specified format
func PrintRules(w io.Writer, list []rules.Rule, format OutputFormat) error {
	switch format {
	case FormatJSON:
		if list == nil {
			list = []rules.Rule{}
		}
		return printJSON(w, map[string][]rules.Rule{"rules": list})
	case FormatYAML:
		views := make([]ruleView, len(list))
		for i, r := range list {
			views[i] = newRuleView(r)
		}
		return printYAML(w, map[string][]ruleView{"rules": views})
	case FormatTable:
		return printRuleTable(w, list)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintRule outputs a single rule in the specified format
func PrintRule(w io.Writer, r *rules.Rule, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(w, r)
	case FormatYAML:
		return printYAML(w, newRuleView(*r))
	case FormatTable:
		if err := printRuleTable(w, []rules.Rule{*r}); err != nil {
			return err
		}
		_, err := fmt.Fprint(w, "\n"+RenderTree(r.Root))
		return err
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintTree outputs a parsed or combined tree.
func PrintTree(w io.Writer, t *client.Tree, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(w, t)
	case FormatYAML:
		return printYAML(w, map[string]any{
			"rule":            t.Text,
			"attribute_names": t.AttributeNames,
			"fingerprint":     t.Fingerprint,
		})
	case FormatTable:
		_, err := fmt.Fprintf(w, "%s\n\n%s", t.Text, RenderTree(t.AST))
		return err
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintAttributes outputs the attribute names of a rule.
func PrintAttributes(w io.Writer, name string, attrs []string, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(w, map[string]any{"name": name, "attributes": attrs})
	case FormatYAML:
		return printYAML(w, map[string]any{"name": name, "attributes": attrs})
	case FormatTable:
		table := tablewriter.NewWriter(w)
		table.Header("#", "Attribute")
		for i, a := range attrs {
			table.Append(fmt.Sprint(i+1), a)
		}
		return table.Render()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintBatch outputs the result of a batch evaluation.
func PrintBatch(w io.Writer, b *client.BatchResult, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(w, b)
	case FormatYAML:
		return printYAML(w, b)
	case FormatTable:
		table := tablewriter.NewWriter(w)
		table.Header("Index", "Result", "Error")
		for _, r := range b.Results {
			result, errText := fmt.Sprint(r.Result), ""
			if r.Error != nil {
				result, errText = "-", r.Error.Code+": "+r.Error.Message
			}
			table.Append(fmt.Sprint(r.Index), result, errText)
		}
		if err := table.Render(); err != nil {
			return err
		}
		_, err := fmt.Fprintf(w, "%d matched, %d failed, %d total\n", b.Matched, b.Failed, len(b.Results))
		return err
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func printJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func printYAML(w io.Writer, data any) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(data)
}

func printRuleTable(w io.Writer, list []rules.Rule) error {
	table := tablewriter.NewWriter(w)
	table.Header("Name", "Rule", "Attributes", "Fingerprint", "Updated At")

	for _, r := range list {
		text := r.Root.String()
		if len(text) > 60 {
			text = text[:57] + "..."
		}
		table.Append(
			r.Name,
			text,
			strings.Join(r.AttributeNames, ", "),
			r.Fingerprint,
			r.UpdatedAt.Format("2006-01-02 15:04"),
		)
	}

	return table.Render()
}

// RenderTree draws a tree with one line per logical node or comparison:
//
//	OR
//	├── AND
//	│   ├── age > 30
//	│   └── department == "Sales"
//	└── vip == 1
func RenderTree(root *ast.Node) string {
	var b strings.Builder
	if root == nil {
		return "<empty>\n"
	}
	renderNode(&b, root, "", "")
	return b.String()
}

func renderNode(b *strings.Builder, n *ast.Node, prefix, childPrefix string) {
	b.WriteString(prefix)
	if n.Kind != ast.KindLogical {
		b.WriteString(n.String())
		b.WriteByte('\n')
		return
	}
	b.WriteString(string(n.Op))
	b.WriteByte('\n')
	renderNode(b, n.Left, childPrefix+"├── ", childPrefix+"│   ")
	renderNode(b, n.Right, childPrefix+"└── ", childPrefix+"    ")
}
