// Command parity_check replays the read-only attendance endpoints against
// both the legacy HRIS and this API during the cutover window and reports
// where the two disagree. Volatile keys (request ids, timestamps, cache
// flags) are skipped and numbers compare by value, so 480 and 480.0 match
// across the two serializers. A reported diff names the first JSON path
// where the payloads diverge.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"
)

type check struct {
	Method   string `json:"method"`
	Path     string `json:"path"`
	Critical bool   `json:"critical"`
}

type plan struct {
	Checks []check `json:"targets"`
	// IgnoreFields are JSON keys skipped at any depth during comparison.
	IgnoreFields []string `json:"ignore_fields"`
}

type side struct {
	name  string
	base  string
	token string
}

type sample struct {
	status  int
	body    []byte
	elapsed time.Duration
}

type outcome struct {
	check  check
	api    sample
	legacy sample
	diff   string
	err    error
}

func main() {
	api := side{name: "api"}
	legacy := side{name: "legacy"}
	var (
		planPath string
		timeout  time.Duration
	)

	flag.StringVar(&api.base, "api-base", "http://localhost:8080/api/v1", "DTR API base URL")
	flag.StringVar(&legacy.base, "legacy-base", "http://localhost:3000/api", "Legacy HRIS base URL")
	flag.StringVar(&api.token, "api-token", os.Getenv("DTR_API_TOKEN"), "Bearer token for the DTR API")
	flag.StringVar(&legacy.token, "legacy-token", os.Getenv("LEGACY_API_TOKEN"), "Bearer token for the legacy HRIS")
	flag.StringVar(&planPath, "targets", filepath.Join("scripts", "parity_check", "targets.json"), "Path to the JSON targets file")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "Per-request timeout")
	flag.Parse()

	p, err := loadPlan(planPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parity_check: %v\n", err)
		os.Exit(2)
	}

	ignored := make(map[string]struct{}, len(p.IgnoreFields))
	for _, f := range p.IgnoreFields {
		ignored[f] = struct{}{}
	}

	client := &http.Client{}
	var outcomes []outcome
	critical := 0
	minor := 0
	for _, ck := range p.Checks {
		o := runCheck(client, api, legacy, ck, ignored, timeout)
		if o.err != nil || o.diff != "" {
			if ck.Critical {
				critical++
			} else {
				minor++
			}
		}
		outcomes = append(outcomes, o)
	}

	report(os.Stdout, outcomes, critical, minor)
	if critical > 0 {
		os.Exit(1)
	}
}

func loadPlan(path string) (*plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(p.Checks) == 0 {
		return nil, fmt.Errorf("%s lists no targets", path)
	}
	return &p, nil
}

func runCheck(client *http.Client, api, legacy side, ck check, ignored map[string]struct{}, timeout time.Duration) outcome {
	o := outcome{check: ck}

	var err error
	if o.api, err = api.get(client, ck, timeout); err != nil {
		o.err = fmt.Errorf("%s: %w", api.name, err)
		return o
	}
	if o.legacy, err = legacy.get(client, ck, timeout); err != nil {
		o.err = fmt.Errorf("%s: %w", legacy.name, err)
		return o
	}

	if o.api.status != o.legacy.status {
		o.diff = fmt.Sprintf("status %d vs %d", o.api.status, o.legacy.status)
		return o
	}
	o.diff = payloadDiff(o.api.body, o.legacy.body, ignored)
	return o
}

func (s side) get(client *http.Client, ck check, timeout time.Duration) (sample, error) {
	method := strings.ToUpper(strings.TrimSpace(ck.Method))
	if method == "" {
		method = http.MethodGet
	}
	url := strings.TrimRight(s.base, "/") + "/" + strings.TrimLeft(ck.Path, "/")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return sample{}, err
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return sample{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return sample{}, err
	}
	return sample{status: resp.StatusCode, body: body, elapsed: time.Since(start)}, nil
}

// payloadDiff reports the first JSON path where the two payloads diverge,
// or "" when they agree. Non-JSON bodies fall back to a byte comparison.
func payloadDiff(a, b []byte, ignored map[string]struct{}) string {
	var av, bv interface{}
	if json.Unmarshal(a, &av) != nil || json.Unmarshal(b, &bv) != nil {
		if strings.TrimSpace(string(a)) == strings.TrimSpace(string(b)) {
			return ""
		}
		return "non-JSON bodies differ"
	}
	return diffValue("$", av, bv, ignored)
}

func diffValue(path string, a, b interface{}, ignored map[string]struct{}) string {
	am, aIsMap := a.(map[string]interface{})
	bm, bIsMap := b.(map[string]interface{})
	if aIsMap && bIsMap {
		keys := make(map[string]struct{}, len(am)+len(bm))
		for k := range am {
			keys[k] = struct{}{}
		}
		for k := range bm {
			keys[k] = struct{}{}
		}
		sorted := make([]string, 0, len(keys))
		for k := range keys {
			if _, skip := ignored[k]; !skip {
				sorted = append(sorted, k)
			}
		}
		sort.Strings(sorted)
		for _, k := range sorted {
			av, aOK := am[k]
			bv, bOK := bm[k]
			child := path + "." + k
			if aOK != bOK {
				return child + " present on one side only"
			}
			if d := diffValue(child, av, bv, ignored); d != "" {
				return d
			}
		}
		return ""
	}

	as, aIsSlice := a.([]interface{})
	bs, bIsSlice := b.([]interface{})
	if aIsSlice && bIsSlice {
		if len(as) != len(bs) {
			return fmt.Sprintf("%s length %d vs %d", path, len(as), len(bs))
		}
		for i := range as {
			if d := diffValue(fmt.Sprintf("%s[%d]", path, i), as[i], bs[i], ignored); d != "" {
				return d
			}
		}
		return ""
	}

	if aIsMap || bIsMap || aIsSlice || bIsSlice {
		return path + ": mismatched types"
	}
	if scalarEqual(a, b) {
		return ""
	}
	return fmt.Sprintf("%s: %v vs %v", path, a, b)
}

func scalarEqual(a, b interface{}) bool {
	af, aNum := a.(float64)
	bf, bNum := b.(float64)
	if aNum && bNum {
		return af == bf
	}
	return a == b
}

func report(w io.Writer, outcomes []outcome, critical, minor int) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATE\tMETHOD\tPATH\tAPI\tLEGACY\tNOTE")
	for _, o := range outcomes {
		state := "ok"
		note := ""
		switch {
		case o.err != nil:
			state = "error"
			note = o.err.Error()
		case o.diff != "":
			state = "diff"
			note = o.diff
			if o.check.Critical {
				state = "DIFF"
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			state, methodOf(o.check), o.check.Path,
			timing(o.api), timing(o.legacy), note)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d critical diff(s), %d minor diff(s)\n", critical, minor)
}

func methodOf(ck check) string {
	if ck.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(ck.Method)
}

func timing(s sample) string {
	if s.status == 0 {
		return "-"
	}
	return fmt.Sprintf("%d/%s", s.status, s.elapsed.Round(time.Millisecond))
}
