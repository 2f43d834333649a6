package stats

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"snnfault/internal/model"
)

const campaignIndexFile = "campaign_index.json"

type CampaignArtifacts struct {
	Campaign model.CampaignRecord `json:"campaign"`
	Trials   []model.TrialRecord  `json:"trials"`
	Summary  Summary              `json:"summary"`
}

type CampaignIndexEntry struct {
	CampaignID    string   `json:"campaign_id"`
	ErrorKind     string   `json:"error_kind"`
	Components    []string `json:"components"`
	Trials        int      `json:"trials"`
	Seed          int64    `json:"seed"`
	Workers       int      `json:"workers"`
	AffectedPct   float64  `json:"affected_pct"`
	MaxImpact     float64  `json:"max_impact"`
	AverageImpact float64  `json:"average_impact"`
	CreatedAtUTC  string   `json:"created_at_utc"`
}

var artifactFiles = []string{"campaign.json", "trials.json", "summary.json", "trials.csv", "report.txt"}

// WriteCampaignArtifacts writes the campaign, its trials, the summary and the
// rendered report under baseDir/<campaign id>.
func WriteCampaignArtifacts(baseDir string, artifacts CampaignArtifacts) (string, error) {
	if strings.TrimSpace(artifacts.Campaign.ID) == "" {
		return "", fmt.Errorf("campaign id is required")
	}

	dir := filepath.Join(baseDir, artifacts.Campaign.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(dir, "campaign.json"), artifacts.Campaign); err != nil {
		return "", err
	}
	trials := sortedTrials(artifacts.Trials)
	if err := writeJSON(filepath.Join(dir, "trials.json"), trials); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(dir, "summary.json"), artifacts.Summary); err != nil {
		return "", err
	}
	if err := WriteTrialsCSV(filepath.Join(dir, "trials.csv"), trials); err != nil {
		return "", err
	}
	var report bytes.Buffer
	if err := WriteReport(&report, artifacts.Campaign, trials); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, "report.txt"), report.Bytes(), 0o644); err != nil {
		return "", err
	}
	return dir, nil
}

// ReadCampaignArtifacts loads what WriteCampaignArtifacts wrote. The boolean
// is false when the campaign directory does not exist.
func ReadCampaignArtifacts(baseDir, campaignID string) (CampaignArtifacts, bool, error) {
	dir := filepath.Join(baseDir, campaignID)
	var out CampaignArtifacts
	ok, err := readJSON(filepath.Join(dir, "campaign.json"), &out.Campaign)
	if err != nil || !ok {
		return CampaignArtifacts{}, ok, err
	}
	if _, err := readJSON(filepath.Join(dir, "trials.json"), &out.Trials); err != nil {
		return CampaignArtifacts{}, false, err
	}
	if _, err := readJSON(filepath.Join(dir, "summary.json"), &out.Summary); err != nil {
		return CampaignArtifacts{}, false, err
	}
	return out, true, nil
}

func IndexEntry(campaign model.CampaignRecord, summary Summary) CampaignIndexEntry {
	components := make([]string, len(campaign.Components))
	for i, c := range campaign.Components {
		components[i] = c.String()
	}
	return CampaignIndexEntry{
		CampaignID:    campaign.ID,
		ErrorKind:     campaign.ErrorKind.String(),
		Components:    components,
		Trials:        campaign.Trials,
		Seed:          campaign.Seed,
		Workers:       campaign.Workers,
		AffectedPct:   summary.AffectedPct,
		MaxImpact:     summary.MaxImpact,
		AverageImpact: summary.AverageImpact,
		CreatedAtUTC:  campaign.CreatedAtUTC,
	}
}

func AppendCampaignIndex(baseDir string, entry CampaignIndexEntry) error {
	if entry.CampaignID == "" {
		return fmt.Errorf("campaign id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListCampaignIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].CampaignID == entry.CampaignID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, campaignIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, campaignIndexFile), index)
}

// ListCampaignIndex returns index entries, newest first.
func ListCampaignIndex(baseDir string) ([]CampaignIndexEntry, error) {
	var entries []CampaignIndexEntry
	ok, err := readJSON(filepath.Join(baseDir, campaignIndexFile), &entries)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []CampaignIndexEntry{}, nil
	}

	type indexedEntry struct {
		entry CampaignIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]CampaignIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// ExportCampaignArtifacts copies a campaign directory into outDir.
func ExportCampaignArtifacts(baseDir, campaignID, outDir string) (string, error) {
	if campaignID == "" {
		return "", fmt.Errorf("campaign id is required")
	}

	src := filepath.Join(baseDir, campaignID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, campaignID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}
	for _, file := range artifactFiles {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	return dst, nil
}

var trialsCSVHeader = []string{
	"trial", "seed", "layer", "neuron", "component", "weight", "bit", "error_kind",
	"input_a", "input_b", "fire_time", "accuracy", "degradation", "duration_ms",
}

func WriteTrialsCSV(path string, trials []model.TrialRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(trialsCSVHeader); err != nil {
		return err
	}
	for _, trial := range trials {
		spec := model.FaultSpec{Kind: model.ErrorNone, Layer: -1, Neuron: -1, Weight: -1}
		component := ""
		if trial.Fault != nil {
			spec = *trial.Fault
			component = spec.Component.String()
		}
		if err := writer.Write([]string{
			strconv.Itoa(trial.Index),
			strconv.FormatInt(trial.Seed, 10),
			strconv.Itoa(spec.Layer),
			strconv.Itoa(spec.Neuron),
			component,
			strconv.Itoa(spec.Weight),
			strconv.FormatUint(uint64(spec.Bit), 10),
			spec.Kind.String(),
			strconv.FormatBool(spec.InputA),
			strconv.FormatBool(spec.InputB),
			strconv.Itoa(trial.FireTime),
			strconv.FormatFloat(trial.Accuracy, 'f', -1, 64),
			strconv.FormatFloat(trial.Degradation, 'f', -1, 64),
			strconv.FormatFloat(trial.DurationMS, 'f', 3, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadTrialsCSV returns the per-trial degradation column keyed by trial index.
func ReadTrialsCSV(path string) (map[int]float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return map[int]float64{}, nil
		}
		return nil, err
	}
	if len(header) != len(trialsCSVHeader) {
		return nil, fmt.Errorf("trials csv header must have %d columns, got %d", len(trialsCSVHeader), len(header))
	}

	out := make(map[int]float64)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		idx, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, err
		}
		degradation, err := strconv.ParseFloat(record[12], 64)
		if err != nil {
			return nil, err
		}
		out[idx] = degradation
	}
	return out, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func readJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
