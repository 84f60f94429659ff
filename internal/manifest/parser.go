// Package manifest parses declarative Lua build manifests into builder
// configurations. Manifests run in a sandboxed VM with a read-only
// `platform` table injected, so a single manifest can select sources
// per OS and architecture:
//
//	binforge = {
//	    target = "/opt/tool",
//	    sources = {
//	        { os = "linux", arch = "amd64", url = "https://...", strip = 1 },
//	        platform.when(platform.is_macos, { url = "https://..." }),
//	    },
//	    commands = { {"make", "install"} },
//	    remaps = { { src = "bin/tool", dest = "tool" } },
//	}
package manifest

import (
	"context"
	"fmt"
	"os"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/binforge/binforge/internal/builder"
	"github.com/binforge/binforge/internal/platform"
)

// GlobalName is the Lua global a manifest must assign its table to.
const GlobalName = "binforge"

// Parser evaluates Lua manifests with platform detection.
type Parser struct {
	detector platform.Detector
}

// NewParser creates a manifest parser using the given platform detector.
func NewParser(detector platform.Detector) *Parser {
	return &Parser{detector: detector}
}

// ParseError is a manifest evaluation error with a user-facing message
// and the raw Lua detail.
type ParseError struct {
	Message string
	Detail  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// ParseFile reads and evaluates a manifest file.
func (p *Parser) ParseFile(ctx context.Context, path string) (*builder.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return p.ParseString(ctx, string(data))
}

// ParseString evaluates a manifest from a string. Useful for tests and
// generated manifests.
func (p *Parser) ParseString(ctx context.Context, luaCode string) (*builder.Config, error) {
	L := newSandboxedVM()
	defer L.Close()

	if p.detector != nil {
		info, err := p.detector.Detect(ctx)
		if err != nil {
			return nil, fmt.Errorf("platform detection failed: %w", err)
		}
		if err := platform.InjectPlatformTable(L, info); err != nil {
			return nil, fmt.Errorf("inject platform table: %w", err)
		}
	}

	if err := L.DoString(luaCode); err != nil {
		return nil, &ParseError{
			Message: "Lua syntax error",
			Detail:  err.Error(),
		}
	}

	return extractConfig(L)
}

// extractConfig pulls the manifest table out of the Lua state.
func extractConfig(L *lua.LState) (*builder.Config, error) {
	root := L.GetGlobal(GlobalName)
	if root.Type() != lua.LTTable {
		return nil, &ParseError{
			Message: fmt.Sprintf("missing or invalid '%s' table", GlobalName),
			Detail:  fmt.Sprintf("expected table, got %s", root.Type()),
		}
	}

	cfg := &builder.Config{}
	table := root.(*lua.LTable)

	if targetVal := table.RawGetString("target"); targetVal.Type() == lua.LTString {
		cfg.TargetDir = targetVal.String()
	}

	if sourcesVal := table.RawGetString("sources"); sourcesVal.Type() == lua.LTTable {
		sources, err := extractSources(sourcesVal.(*lua.LTable))
		if err != nil {
			return nil, err
		}
		cfg.Sources = sources
	}

	if commandsVal := table.RawGetString("commands"); commandsVal.Type() == lua.LTTable {
		commands, err := extractCommands(commandsVal.(*lua.LTable))
		if err != nil {
			return nil, err
		}
		cfg.Commands = commands
	}

	if remapsVal := table.RawGetString("remaps"); remapsVal.Type() == lua.LTTable {
		cfg.Remaps = extractRemaps(remapsVal.(*lua.LTable))
	}

	if optionsVal := table.RawGetString("options"); optionsVal.Type() == lua.LTTable {
		applyOptions(cfg, optionsVal.(*lua.LTable))
	}

	if err := cfg.Validate(); err != nil {
		return nil, &ParseError{
			Message: "manifest validation failed",
			Detail:  err.Error(),
		}
	}

	return cfg, nil
}

// extractSources reads the sources array. Entries are tables with url
// (required), os, arch, strip, checksum, and signature. A plain string
// entry is shorthand for { url = entry }. Nil entries from platform
// conditionals are skipped. Sources without an os or arch are pinned to
// the current host via the registry, matching programmatic registration.
func extractSources(table *lua.LTable) ([]builder.Source, error) {
	registry := builder.NewRegistry()
	var extractErr error

	table.ForEach(func(key, value lua.LValue) {
		if extractErr != nil {
			return
		}

		switch value.Type() {
		case lua.LTNil:
			return
		case lua.LTString:
			registry.Register(builder.Source{URL: value.String()})
		case lua.LTTable:
			src, err := extractSource(value.(*lua.LTable))
			if err != nil {
				extractErr = err
				return
			}
			registry.Register(src)
		}
	})

	if extractErr != nil {
		return nil, extractErr
	}
	return registry.Sources(), nil
}

func extractSource(table *lua.LTable) (builder.Source, error) {
	src := builder.Source{}

	if urlVal := table.RawGetString("url"); urlVal.Type() == lua.LTString {
		src.URL = urlVal.String()
	}
	if src.URL == "" {
		return src, &ParseError{
			Message: "invalid source entry",
			Detail:  "every source needs a url",
		}
	}

	if osVal := table.RawGetString("os"); osVal.Type() == lua.LTString {
		src.OS = osVal.String()
	}
	if archVal := table.RawGetString("arch"); archVal.Type() == lua.LTString {
		src.Arch = archVal.String()
	}
	if stripVal := table.RawGetString("strip"); stripVal.Type() == lua.LTNumber {
		src.Strip = int(lua.LVAsNumber(stripVal))
	}
	if sumVal := table.RawGetString("checksum"); sumVal.Type() == lua.LTString {
		src.Checksum = sumVal.String()
	}
	if sigVal := table.RawGetString("signature"); sigVal.Type() == lua.LTString {
		src.SignatureURL = sigVal.String()
	}

	return src, nil
}

// extractCommands reads the commands array. Each entry is an array of
// strings, the executable followed by its arguments. A plain string
// entry is split on whitespace; there is no shell quoting.
func extractCommands(table *lua.LTable) ([]builder.Command, error) {
	var commands []builder.Command
	var extractErr error

	table.ForEach(func(key, value lua.LValue) {
		if extractErr != nil {
			return
		}

		switch value.Type() {
		case lua.LTNil:
			return
		case lua.LTString:
			fields := strings.Fields(value.String())
			if len(fields) == 0 {
				return
			}
			commands = append(commands, builder.Command{
				Executable: fields[0],
				Args:       fields[1:],
			})
		case lua.LTTable:
			cmd, err := extractCommand(value.(*lua.LTable))
			if err != nil {
				extractErr = err
				return
			}
			commands = append(commands, cmd)
		}
	})

	if extractErr != nil {
		return nil, extractErr
	}
	return commands, nil
}

func extractCommand(table *lua.LTable) (builder.Command, error) {
	var parts []string
	table.ForEach(func(key, value lua.LValue) {
		if value.Type() == lua.LTString {
			parts = append(parts, value.String())
		}
	})

	if len(parts) == 0 {
		return builder.Command{}, &ParseError{
			Message: "invalid command entry",
			Detail:  "command tables need at least an executable",
		}
	}
	return builder.Command{Executable: parts[0], Args: parts[1:]}, nil
}

// extractRemaps reads the remaps array. Entries are tables with src
// (required) and dest; a plain string is shorthand for { src = entry }.
func extractRemaps(table *lua.LTable) []builder.Remap {
	var remaps []builder.Remap

	table.ForEach(func(key, value lua.LValue) {
		switch value.Type() {
		case lua.LTString:
			remaps = append(remaps, builder.Remap{Src: value.String()})
		case lua.LTTable:
			rmTable := value.(*lua.LTable)
			rm := builder.Remap{}
			if srcVal := rmTable.RawGetString("src"); srcVal.Type() == lua.LTString {
				rm.Src = srcVal.String()
			}
			if destVal := rmTable.RawGetString("dest"); destVal.Type() == lua.LTString {
				rm.Dest = destVal.String()
			}
			if rm.Src != "" {
				remaps = append(remaps, rm)
			}
		}
	})

	return remaps
}

func applyOptions(cfg *builder.Config, table *lua.LTable) {
	if silentVal := table.RawGetString("silent"); silentVal.Type() == lua.LTBool {
		cfg.Silent = bool(silentVal.(lua.LBool))
	}
	if keyringVal := table.RawGetString("keyring"); keyringVal.Type() == lua.LTString {
		cfg.KeyringPath = keyringVal.String()
	}
}

// FormatError renders a manifest error for the terminal. Verbose mode
// keeps the raw Lua detail including the stack traceback.
func FormatError(err error, verbose bool) string {
	if parseErr, ok := err.(*ParseError); ok {
		if verbose {
			return fmt.Sprintf("%s\n\nDetails:\n%s", parseErr.Message, parseErr.Detail)
		}
		detail := parseErr.Detail
		if idx := strings.Index(detail, "stack traceback"); idx > 0 {
			detail = strings.TrimSpace(detail[:idx])
		}
		return fmt.Sprintf("%s: %s", parseErr.Message, detail)
	}
	return err.Error()
}
