package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-listings/config"
	"github.com/aluiziolira/go-scrape-listings/pipeline"
)

func TestLoadConfigLayers(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "harvest.yaml")
	doc := "output_format: JSON\noutput_file: from-file.jsonl\npage_delay: 3s\nmax_pages: 4\n"
	if err := os.WriteFile(cfgPath, []byte(doc), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("HARVEST_MAX_PAGES", "7")
	t.Setenv("HARVEST_DEVICE_ID", "device-env")

	cfg, err := loadConfig(cfgPath, filepath.Join(dir, "missing.env"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.OutputFormat != "json" || cfg.OutputFile != "from-file.jsonl" {
		t.Fatalf("output = %s/%s", cfg.OutputFormat, cfg.OutputFile)
	}
	if cfg.PageDelay.Duration != 3*time.Second {
		t.Fatalf("page delay = %v, want 3s", cfg.PageDelay)
	}
	if cfg.MaxPages != 7 {
		t.Fatalf("max pages = %d, env should win over file", cfg.MaxPages)
	}
	if cfg.DeviceID != "device-env" {
		t.Fatalf("device id = %q", cfg.DeviceID)
	}
}

func TestApplyFlag(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Duration("cooldown", time.Second, "")
	fs.Int("max-pages", 0, "")
	fs.Bool("dedupe", false, "")
	fs.String("format", "csv", "")
	if err := fs.Parse([]string{"-cooldown", "9s", "-max-pages", "2", "-dedupe", "-format", "sqlite"}); err != nil {
		t.Fatalf("parse: %v", err)
	}

	cfg := config.DefaultConfig()
	fs.Visit(func(f *flag.Flag) {
		applyFlag(cfg, f)
	})

	if cfg.RateLimitCooldown.Duration != 9*time.Second || cfg.MaxPages != 2 || !cfg.Dedupe || cfg.OutputFormat != "sqlite" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestCreateWriter(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()

	cfg.OutputFormat = "sqlite"
	cfg.OutputFile = filepath.Join(dir, "out.db")
	writer, err := createWriter(context.Background(), cfg)
	if err != nil {
		t.Fatalf("sqlite writer: %v", err)
	}
	if _, ok := writer.(*pipeline.SQLiteWriter); !ok {
		t.Fatalf("writer = %T, want *pipeline.SQLiteWriter", writer)
	}
	writer.Close()

	cfg.OutputFormat = "dual"
	cfg.OutputFile = filepath.Join(dir, "out.csv")
	writer, err = createWriter(context.Background(), cfg)
	if err != nil {
		t.Fatalf("dual writer: %v", err)
	}
	writer.Close()
	if _, err := os.Stat(filepath.Join(dir, "out.json")); err != nil {
		t.Fatalf("dual writer should create out.json: %v", err)
	}

	cfg.OutputFormat = "xml"
	if _, err := createWriter(context.Background(), cfg); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}

const listingBody = `{"response":{"snippets":[
	{"widget_type":"product_card_snippet_type_2","data":{"identity":{"id":"101"},"name":{"text":"Amul Taaza"},"normal_price":{"text":"Rs. 27"},"inventory":4}},
	{"widget_type":"product_card_snippet_type_2","data":{"identity":{"id":"102"},"name":{"text":"Mother Dairy Toned"},"normal_price":{"text":"Rs. 28"},"inventory":0}}
]}}`

func writeRunFixtures(t *testing.T, dir, extra string) (cfgPath, inputPath string) {
	t.Helper()
	t.Setenv("HARVEST_SESSION_UUID", "session-1")
	t.Setenv("HARVEST_AUTH_KEY", "auth-1")

	cfgPath = filepath.Join(dir, "harvest.yaml")
	doc := "page_delay: 0s\ntask_delay: 0s\nretry_backoff: 0s\nmax_attempts: 1\n" + extra
	if err := os.WriteFile(cfgPath, []byte(doc), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	inputPath = filepath.Join(dir, "input.json")
	input := `[{"latitude":28.678051,"longitude":77.314683,"l0_cat":14,"l1_cat":922,"location_name":"Delhi","category_name":"Milk"}]`
	if err := os.WriteFile(inputPath, []byte(input), 0o600); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return cfgPath, inputPath
}

func TestRunExportsHarvestedRecords(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, listingBody)
	}))
	defer server.Close()

	dir := t.TempDir()
	output := filepath.Join(dir, "products.jsonl")
	extra := fmt.Sprintf("base_url: %s\noutput_format: json\noutput_file: %s\n", server.URL, output)
	cfgPath, inputPath := writeRunFixtures(t, dir, extra)

	if err := run(cfgPath, filepath.Join(dir, "missing.env"), inputPath, false); err != nil {
		t.Fatalf("run: %v", err)
	}

	f, err := os.Open(output)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if !strings.Contains(scanner.Text(), `"price":2`) {
			t.Fatalf("line %q lost its price", scanner.Text())
		}
		lines++
	}
	if lines != 2 {
		t.Fatalf("exported lines = %d, want 2", lines)
	}
}

func TestRunReturnsErrorsInsteadOfExiting(t *testing.T) {
	dir := t.TempDir()
	extra := "output_format: postgres\npostgres_dsn: postgres://harvest@127.0.0.1:1/harvest?connect_timeout=1\n"
	cfgPath, inputPath := writeRunFixtures(t, dir, extra)

	err := run(cfgPath, "", inputPath, false)
	if err == nil || !strings.Contains(err.Error(), "creating writer") {
		t.Fatalf("err = %v, want a writer creation error", err)
	}

	if err := run(cfgPath, "", filepath.Join(dir, "absent.json"), false); err == nil || !strings.Contains(err.Error(), "loading input") {
		t.Fatalf("err = %v, want an input error", err)
	}
}
