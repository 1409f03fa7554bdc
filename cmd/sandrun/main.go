// sandrun executes one untrusted code file in a sandbox session and prints
// the structured result as JSON. Exit code 0 when the code succeeded, 1
// otherwise.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"sandrun/internal/sandbox"
	"sandrun/internal/sandbox/engine"
	"sandrun/internal/sandbox/observer"
	"sandrun/internal/sandbox/result"
	"sandrun/pkg/utils/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  = flag.String("config", "", "path to yaml config file")
		codePath    = flag.String("file", "-", "code file to execute, - reads stdin")
		profileID   = flag.String("profile", "", "runtime profile id")
		timeLimit   = flag.Uint("time", 0, "wall clock limit in seconds")
		cpuLimit    = flag.Uint("cpu", 0, "cpu time limit in seconds")
		memLimit    = flag.Uint("mem", 0, "memory limit in MB")
		prettyPrint = flag.Bool("pretty", false, "indent the JSON result")
	)
	var allowPaths []string
	flag.Func("allow", "allowlist path, repeatable", func(v string) error {
		allowPaths = append(allowPaths, v)
		return nil
	})
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 2
	}
	if err := logger.Init(cfg.Log); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 2
	}
	defer func() { _ = logger.Sync() }()

	code, err := readCode(*codePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 2
	}

	eng, err := engine.NewEngine(cfg.engineConfig())
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 2
	}

	svcOpts := []sandbox.ServiceOption{sandbox.WithMetrics(observer.LogMetricsRecorder{})}
	for _, p := range cfg.Profiles {
		svcOpts = append(svcOpts, sandbox.WithProfile(p.runtimeProfile()))
	}
	svc := sandbox.NewService(eng, cfg.Sandbox.WorkRoot, svcOpts...)

	opts := sandbox.Options{
		FSAllowlist: allowPaths,
		Profile:     *profileID,
	}
	if *timeLimit > 0 {
		opts.TimeLimitSec = timeLimit
	}
	if *cpuLimit > 0 {
		opts.CPULimitSec = cpuLimit
	}
	if *memLimit > 0 {
		opts.MemLimitMB = memLimit
	}

	res := svc.RunCode(context.Background(), code, opts)

	enc := json.NewEncoder(os.Stdout)
	if *prettyPrint {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(res); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 2
	}
	if res.Status != result.StatusSuccess {
		return 1
	}
	return 0
}

func readCode(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read code file: %w", err)
	}
	return string(data), nil
}
