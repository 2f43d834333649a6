package stats

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteReadAndExportCampaignArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "exports")

	campaign := sampleCampaign()
	trials := sampleTrials()
	dir, err := WriteCampaignArtifacts(baseDir, CampaignArtifacts{
		Campaign: campaign,
		Trials:   trials,
		Summary:  Summarize(trials),
	})
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}
	for _, file := range artifactFiles {
		if _, err := os.Stat(filepath.Join(dir, file)); err != nil {
			t.Fatalf("expected file %s: %v", file, err)
		}
	}

	loaded, ok, err := ReadCampaignArtifacts(baseDir, campaign.ID)
	if err != nil || !ok {
		t.Fatalf("read artifacts: ok=%t err=%v", ok, err)
	}
	if loaded.Campaign.ID != campaign.ID || len(loaded.Trials) != len(trials) {
		t.Fatalf("unexpected loaded artifacts: %+v", loaded.Campaign)
	}
	if loaded.Trials[0].Index != 0 || loaded.Trials[2].Index != 2 {
		t.Fatalf("trials must be stored in index order: %+v", loaded.Trials)
	}
	if loaded.Campaign.Baseline[0][1] != 1 {
		t.Fatalf("unexpected baseline: %v", loaded.Campaign.Baseline)
	}
	if loaded.Summary.MaxImpact != 50 {
		t.Fatalf("unexpected summary: %+v", loaded.Summary)
	}

	degradation, err := ReadTrialsCSV(filepath.Join(dir, "trials.csv"))
	if err != nil {
		t.Fatalf("read trials csv: %v", err)
	}
	if len(degradation) != 3 || degradation[1] != 25 {
		t.Fatalf("unexpected csv degradation: %v", degradation)
	}

	exported, err := ExportCampaignArtifacts(baseDir, campaign.ID, outDir)
	if err != nil {
		t.Fatalf("export artifacts: %v", err)
	}
	for _, file := range artifactFiles {
		if _, err := os.Stat(filepath.Join(exported, file)); err != nil {
			t.Fatalf("expected exported file %s: %v", file, err)
		}
	}
}

func TestReadCampaignArtifactsMissing(t *testing.T) {
	_, ok, err := ReadCampaignArtifacts(t.TempDir(), "missing")
	if err != nil || ok {
		t.Fatalf("expected missing campaign: ok=%t err=%v", ok, err)
	}
}

func TestWriteCampaignArtifactsRequiresID(t *testing.T) {
	if _, err := WriteCampaignArtifacts(t.TempDir(), CampaignArtifacts{}); err == nil {
		t.Fatal("expected campaign id error")
	}
}

func TestCampaignIndexSortedAndUpserted(t *testing.T) {
	baseDir := t.TempDir()

	first := IndexEntry(sampleCampaign(), Summarize(sampleTrials()))
	first.CampaignID = "campaign-1"
	first.CreatedAtUTC = "2026-01-01T00:00:00Z"
	second := first
	second.CampaignID = "campaign-2"
	second.CreatedAtUTC = "2026-01-02T00:00:00Z"

	if err := AppendCampaignIndex(baseDir, first); err != nil {
		t.Fatalf("append first: %v", err)
	}
	if err := AppendCampaignIndex(baseDir, second); err != nil {
		t.Fatalf("append second: %v", err)
	}
	first.MaxImpact = 99
	if err := AppendCampaignIndex(baseDir, first); err != nil {
		t.Fatalf("upsert first: %v", err)
	}

	entries, err := ListCampaignIndex(baseDir)
	if err != nil {
		t.Fatalf("list index: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].CampaignID != "campaign-2" || entries[1].CampaignID != "campaign-1" {
		t.Fatalf("unexpected order: %+v", entries)
	}
	if entries[1].MaxImpact != 99 {
		t.Fatalf("expected upserted entry, got %+v", entries[1])
	}
	if entries[0].ErrorKind != "transient_flip" || len(entries[0].Components) != 2 {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}

	if err := AppendCampaignIndex(baseDir, CampaignIndexEntry{}); err == nil {
		t.Fatal("expected campaign id error")
	}
}

func TestListCampaignIndexEmpty(t *testing.T) {
	entries, err := ListCampaignIndex(t.TempDir())
	if err != nil {
		t.Fatalf("list index: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty index, got %d", len(entries))
	}
}
