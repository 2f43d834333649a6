package stats

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"snnfault/internal/model"
)

const banner = "######################################################################"

// ReportRow is the display form of one trial.
type ReportRow struct {
	Trial     int    `json:"trial"`
	Layer     string `json:"layer"`
	Neuron    string `json:"neuron"`
	Component string `json:"component"`
	Bit       string `json:"bit"`
	Error     string `json:"error"`
	FireTime  string `json:"fire_time"`
	Impact    string `json:"impact"`
}

// Row renders a trial the way the report table shows it. Arithmetic units act
// network-wide, so their layer and neuron are shown as "/".
func Row(trial model.TrialRecord) ReportRow {
	row := ReportRow{
		Trial:    trial.Index,
		Layer:    "-",
		Neuron:   "-",
		Bit:      "-",
		FireTime: "-",
		Impact:   FormatImpact(trial.Degradation),
	}
	spec := trial.Fault
	if spec == nil {
		row.Component = "none"
		row.Error = model.ErrorNone.Label()
		return row
	}
	row.Component = spec.Component.Label()
	row.Error = spec.Kind.Label()
	row.Bit = strconv.FormatUint(uint64(spec.Bit), 10)
	if spec.Component.Arithmetic() {
		row.Layer, row.Neuron = "/", "/"
	} else {
		row.Layer = strconv.Itoa(spec.Layer)
		row.Neuron = strconv.Itoa(spec.Neuron)
	}
	if spec.Component.Weighted() && spec.Weight >= 0 {
		row.Component = fmt.Sprintf("%s [%d]", row.Component, spec.Weight)
	}
	if spec.Component.InputSide() {
		row.Component = fmt.Sprintf("%s - (%d,%d)", row.Component, boolDigit(spec.InputA), boolDigit(spec.InputB))
	}
	if trial.FireTime >= 0 && !spec.Persistent() {
		row.FireTime = strconv.Itoa(trial.FireTime)
	}
	return row
}

// FormatImpact truncates a degradation percentage to two decimals.
func FormatImpact(impact float64) string {
	return humanize.FormatFloat("#,###.##", Truncate2(impact)) + "%"
}

// WriteReport renders the campaign header, one row per trial, the rows with
// the maximum impact and a summary.
func WriteReport(w io.Writer, campaign model.CampaignRecord, trials []model.TrialRecord) error {
	summary := Summarize(trials)
	sorted := sortedTrials(trials)

	var b strings.Builder
	section(&b, "CONFIGURATION")
	fmt.Fprintf(&b, "Campaign:    %s\n", campaign.ID)
	if campaign.CreatedAtUTC != "" {
		fmt.Fprintf(&b, "Created:     %s\n", campaign.CreatedAtUTC)
	}
	fmt.Fprintf(&b, "Model:       %s\n", campaign.NeuronModel)
	fmt.Fprintf(&b, "Layers:      %v\n", campaign.Layers)
	fmt.Fprintf(&b, "Components:  %s\n", componentLabels(campaign.Components))
	fmt.Fprintf(&b, "Error:       %s\n", campaign.ErrorKind.Label())
	fmt.Fprintf(&b, "Trials:      %s\n", humanize.Comma(int64(campaign.Trials)))
	fmt.Fprintf(&b, "Seed:        %d\n", campaign.Seed)

	section(&b, "SNN WITHOUT ERROR")
	fmt.Fprintf(&b, "INPUT:  %s\n", formatMatrix(campaign.Input))
	fmt.Fprintf(&b, "OUTPUT: %s\n", formatMatrix(campaign.Baseline))
	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}

	if len(sorted) > 0 {
		if _, err := fmt.Fprintf(w, "\n%s\n", "TRIALS"); err != nil {
			return err
		}
		if err := writeRows(w, sorted); err != nil {
			return err
		}
	}

	if len(summary.MaxImpactTrials) > 0 {
		b.Reset()
		section(&b, "MAX IMPACT INFO")
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}
		maxRows := make([]model.TrialRecord, 0, len(summary.MaxImpactTrials))
		for _, trial := range sorted {
			if trial.Degradation == summary.MaxImpact {
				maxRows = append(maxRows, trial)
			}
		}
		if err := writeRows(w, maxRows); err != nil {
			return err
		}
	}

	b.Reset()
	section(&b, "SUMMARY")
	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Total affected inferences\t%s\n", humanize.Comma(int64(summary.Affected)))
	fmt.Fprintf(tw, "Affected inferences\t%s\n", FormatImpact(summary.AffectedPct))
	fmt.Fprintf(tw, "Max impact\t%s\n", FormatImpact(summary.MaxImpact))
	fmt.Fprintf(tw, "Average impact\t%s\n", FormatImpact(summary.AverageImpact))
	return tw.Flush()
}

// WriteTrialTable writes the trial table of the report, ordered by index.
func WriteTrialTable(w io.Writer, trials []model.TrialRecord) error {
	return writeRows(w, sortedTrials(trials))
}

func writeRows(w io.Writer, trials []model.TrialRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Trial\tLayer\tNeuron\tComponent\tBit\tError\tFire\tImpact On Accuracy\t")
	for _, trial := range trials {
		r := Row(trial)
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			r.Trial, r.Layer, r.Neuron, r.Component, r.Bit, r.Error, r.FireTime, r.Impact)
	}
	return tw.Flush()
}

func section(b *strings.Builder, title string) {
	pad := (len(banner) - 2 - len(title)) / 2
	if pad < 1 {
		pad = 1
	}
	fmt.Fprintf(b, "\n%s\n#%s%s%s#\n%s\n", banner, strings.Repeat(" ", pad), title,
		strings.Repeat(" ", len(banner)-2-pad-len(title)), banner)
}

func componentLabels(components []model.Component) string {
	if len(components) == 0 {
		return "none"
	}
	labels := make([]string, len(components))
	for i, c := range components {
		labels[i] = c.Label()
	}
	return strings.Join(labels, ", ")
}

func formatMatrix(m [][]uint8) string {
	rows := make([]string, len(m))
	for t, row := range m {
		cells := make([]string, len(row))
		for j, s := range row {
			cells[j] = strconv.Itoa(int(s))
		}
		rows[t] = "[" + strings.Join(cells, " ") + "]"
	}
	return "[" + strings.Join(rows, " ") + "]"
}

func boolDigit(v bool) int {
	if v {
		return 1
	}
	return 0
}
