package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/TimurManjosov/splitgate/internal/allocator"
	"github.com/TimurManjosov/splitgate/internal/classifier"
	"github.com/TimurManjosov/splitgate/internal/gate"
	"github.com/TimurManjosov/splitgate/internal/snapshot"
)

// OutputFormat specifies the output format for CLI commands
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// Classification is the result of the classify command
type Classification struct {
	URL       string             `json:"url" yaml:"url"`
	Exempt    bool               `json:"exempt" yaml:"exempt"`
	Predicate string             `json:"predicate,omitempty" yaml:"predicate,omitempty"`
	Matches   []classifier.Match `json:"matches" yaml:"matches"`
}

// PrintClassification outputs every predicate and the verdict
func PrintClassification(w io.Writer, c Classification, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(w, c)
	case FormatYAML:
		return printYAML(w, c)
	case FormatTable:
		table := tablewriter.NewWriter(w)
		table.Header("Predicate", "Matched")
		for _, m := range c.Matches {
			table.Append(string(m.Predicate), strconv.FormatBool(m.Matched))
		}
		if err := table.Render(); err != nil {
			return err
		}
		verdict := "eligible"
		if c.Exempt {
			verdict = "exempt (" + c.Predicate + ")"
		}
		_, err := fmt.Fprintf(w, "%s: %s\n", c.URL, verdict)
		return err
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintDecision outputs a gate decision
func PrintDecision(w io.Writer, dec gate.Decision, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(w, dec)
	case FormatYAML:
		return printYAML(w, dec)
	case FormatTable:
		table := tablewriter.NewWriter(w)
		table.Header("Field", "Value")
		table.Append("Path", dec.Path)
		table.Append("Exempt", strconv.FormatBool(dec.Exempt))
		if dec.Predicate != "" {
			table.Append("Predicate", string(dec.Predicate))
		}
		table.Append("Marker", describeMarker(dec))
		table.Append("Outcome", string(dec.Outcome.Kind))
		table.Append("Reason", string(dec.Outcome.Reason))
		if dec.Outcome.IsRedirect() {
			table.Append("Target", dec.Outcome.TargetURL)
		}
		if dec.SetMarker != nil {
			table.Append("Sets Marker", dec.SetMarker.Encode())
		}
		return table.Render()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintSimulation outputs a simulation summary
func PrintSimulation(w io.Writer, res allocator.SimulationResult, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(w, res)
	case FormatYAML:
		return printYAML(w, res)
	case FormatTable:
		table := tablewriter.NewWriter(w)
		table.Header("Trials", "Ratio", "Redirects", "Controls", "Redirect Rate", "Sticky Violations")
		table.Append(
			strconv.Itoa(res.Trials),
			fmt.Sprintf("%d%%", res.Ratio),
			strconv.Itoa(res.Redirects),
			strconv.Itoa(res.Controls),
			fmt.Sprintf("%.2f%%", res.Rate),
			strconv.Itoa(res.StickyViolations),
		)
		return table.Render()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintSettings outputs the experiment settings
func PrintSettings(w io.Writer, view snapshot.SettingsView, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(w, view)
	case FormatYAML:
		return printYAML(w, view)
	case FormatTable:
		table := tablewriter.NewWriter(w)
		table.Header("Setting", "Value")
		table.Append("Variant URL", view.VariantURL)
		table.Append("Home URL", view.HomeURL)
		table.Append("Split Ratio", fmt.Sprintf("%d%%", view.SplitRatio))
		table.Append("Marker", view.MarkerName)
		table.Append("Marker TTL", view.MarkerTTL)
		domain := view.MarkerDomain
		if domain == "" {
			domain = "(apex of request host)"
		}
		table.Append("Marker Domain", domain)
		table.Append("HttpOnly", strconv.FormatBool(view.MarkerHTTPOnly))
		table.Append("Secure", strconv.FormatBool(view.MarkerSecure))
		table.Append("Preserve Path", strconv.FormatBool(view.PreservePath))
		table.Append("Mark Exempt Bypass", strconv.FormatBool(view.MarkExemptBypass))
		table.Append("Path Hints", strconv.FormatBool(view.PathHints))
		table.Append("Policy", view.Policy)
		return table.Render()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func describeMarker(dec gate.Decision) string {
	if dec.MalformedMarker {
		return "malformed (treated as unset)"
	}
	s := dec.Marker.Value.String()
	if !dec.Marker.ExpiresAt.IsZero() {
		s += " until " + dec.Marker.ExpiresAt.Format(time.RFC3339)
	}
	return s
}

func printJSON(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func printYAML(w io.Writer, data interface{}) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(data)
}
