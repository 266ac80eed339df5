package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
)

const (
	formatJSON  = "json"
	formatTable = "table"
)

// errUnsupportedFormat is returned when the requested output format is not supported.
var errUnsupportedFormat = errors.New("unsupported output format")

func formatStates(states []stateView, format string) (string, error) {
	switch format {
	case formatJSON:
		return formatJSONValue(states)
	case formatTable:
		return formatStatesTable(states)
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

func formatState(st *stateView, format string) (string, error) {
	switch format {
	case formatJSON:
		return formatJSONValue(st)
	case formatTable:
		return formatStateDetail(st), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

func formatStep(step *stepView, format string) (string, error) {
	switch format {
	case formatJSON:
		return formatJSONValue(step)
	case formatTable:
		return fmt.Sprintf("%s -> state %d\n", step.Kind, step.StateID), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

func formatWholeGraph(res *wholeGraphView, format string) (string, error) {
	switch format {
	case formatJSON:
		return formatJSONValue(res)
	case formatTable:
		var buf strings.Builder

		fmt.Fprintf(&buf, "states:       %d\n", res.StatesTotal)
		fmt.Fprintf(&buf, "final states: %d\n", res.FinalTotal)
		fmt.Fprintf(&buf, "graph full:   %t\n", res.GraphFull)

		for _, f := range res.Failures {
			fmt.Fprintf(&buf, "failure:      %s\n", f)
		}

		return buf.String(), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

func formatCycle(c *cycleView, format string) (string, error) {
	switch format {
	case formatJSON:
		return formatJSONValue(c)
	case formatTable:
		if !c.Found {
			return "no cycle found\n", nil
		}

		return fmt.Sprintf("cycle found: prefix=%v cycle=%v\n", c.Prefix, c.Cycle), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

func formatJSONValue(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal to JSON: %w", err)
	}

	return string(data) + "\n", nil
}

func formatStatesTable(states []stateView) (string, error) {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDEPTH\tFLAGS\tALLOWED\tOUT\tIN\tMAX-SESSION-DEPTH\tBLOCKED")

	for _, st := range states {
		fmt.Fprintf(w, "%d\t%d\t%s\t%d\t%d\t%d\t%d\t%t\n",
			st.ID, st.Depth, st.Flags, st.AllowedCount, st.OutgoingCount, st.IncomingCount,
			st.MaxSessionDepth, st.DefinitelyBlocked,
		)
	}

	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("flush tabwriter: %w", err)
	}

	return buf.String(), nil
}

func formatStateDetail(st *stateView) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "ID:\t%d\n", st.ID)
	fmt.Fprintf(w, "Depth:\t%d\n", st.Depth)
	fmt.Fprintf(w, "Flags:\t%s\n", st.Flags)
	fmt.Fprintf(w, "Allowed Transitions:\t%d\n", st.AllowedCount)
	fmt.Fprintf(w, "Outgoing:\t%d\n", st.OutgoingCount)
	fmt.Fprintf(w, "Incoming:\t%d\n", st.IncomingCount)
	fmt.Fprintf(w, "Max Session Depth:\t%d\n", st.MaxSessionDepth)
	fmt.Fprintf(w, "Definitely Blocked:\t%t\n", st.DefinitelyBlocked)

	_ = w.Flush()

	return buf.String()
}
