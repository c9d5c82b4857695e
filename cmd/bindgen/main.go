// bindgen scans the struct types named in a mirrorbind.toml manifest and
// generates a descriptor-registration source file. Class signatures are
// cached so unchanged manifests regenerate nothing.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"

	"github.com/chazu/mirrorbind/scan"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("mirrorbind.bindgen")

func main() {
	configPath := flag.String("config", "mirrorbind.toml", "binding manifest")
	force := flag.Bool("force", false, "regenerate even when signatures are unchanged")
	flag.Parse()

	if err := run(*configPath, *force); err != nil {
		fmt.Fprintf(os.Stderr, "bindgen: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, force bool) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}

	// Group requested types by package so each package loads once.
	want := map[string]map[string]string{}
	exclude := map[string]map[string][]string{}
	for _, cl := range cfg.Classes {
		if want[cl.Package] == nil {
			want[cl.Package] = map[string]string{}
			exclude[cl.Package] = map[string][]string{}
		}
		want[cl.Package][cl.Type] = cl.Expose
		exclude[cl.Package][cl.Type] = cl.Exclude
	}

	var classes []*scan.Class
	for path := range want {
		scanned, err := scan.Package(path, want[path], exclude[path])
		if err != nil {
			return err
		}
		classes = append(classes, scanned...)
	}
	log.Infof("scanned %d classes from %d packages", len(classes), len(want))

	cache, err := scan.LoadCache(cfg.Cache)
	if err != nil {
		return err
	}
	if !force && cache.Fresh(classes) {
		if _, err := os.Stat(cfg.Output); err == nil {
			log.Infof("%s is up to date", cfg.Output)
			return nil
		}
	}

	code, err := scan.Generate(classes, cfg.Package)
	if err != nil {
		return err
	}
	if err := os.WriteFile(cfg.Output, []byte(code), 0o644); err != nil {
		return err
	}

	cache.Update(classes)
	if err := cache.Save(cfg.Cache); err != nil {
		return err
	}
	log.Infof("wrote %s", cfg.Output)
	return nil
}
