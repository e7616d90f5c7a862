package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"unicode/utf16"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/picklover/InteYara/dotnet"
)

func main() {
	var (
		file        = flag.String("file", "", "Path to PE file")
		asJSON      = flag.Bool("json", false, "Emit the report as JSON")
		verbose     = flag.Bool("v", false, "Enable debug logging")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "Usage: dotnetdump -file <image.exe> [-json]")
		fmt.Fprintln(os.Stderr, "       dotnetdump -file <image.exe> -i  (interactive mode)")
		os.Exit(1)
	}

	if *verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		dotnet.SetLogger(logger)
	}

	if *interactive {
		if err := runInteractive(*file); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*file, *asJSON); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(file string, asJSON bool) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	rep, err := dotnet.ExtractBytes(data)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	fmt.Print(renderReport(file, rep, term.IsTerminal(int(os.Stdout.Fd()))))
	return nil
}

var (
	headingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))
)

func renderReport(file string, rep *dotnet.Report, color bool) string {
	heading := func(s string) string {
		if color {
			return headingStyle.Render(s)
		}
		return s
	}
	label := func(s string) string {
		if color {
			return labelStyle.Render(s)
		}
		return s
	}
	value := func(s string) string {
		if color {
			return valueStyle.Render(s)
		}
		return s
	}

	var b strings.Builder
	b.WriteString(heading(".NET metadata"))
	b.WriteString(" ")
	b.WriteString(file)
	b.WriteString("\n\n")

	if !rep.IsDotNet {
		b.WriteString("Not a .NET assembly.\n")
		return b.String()
	}

	field := func(name string, v *string) {
		if v == nil {
			return
		}
		fmt.Fprintf(&b, "%s %s\n", label(name+":"), value(*v))
	}
	field("Version", rep.Version)
	field("Module name", rep.ModuleName)
	field("Typelib", rep.TypeLib)

	if asm := rep.Assembly; asm != nil {
		fmt.Fprintf(&b, "%s %s\n", label("Assembly:"), value(formatAssembly(asm)))
	}

	if len(rep.Streams) > 0 {
		b.WriteString("\n" + heading("Streams") + "\n")
		for _, s := range rep.Streams {
			fmt.Fprintf(&b, "  %-10s offset %#x  size %d\n", value(s.Name), s.Offset, s.Size)
		}
	}
	writeList(&b, heading("GUIDs"), rep.GUIDs)
	if len(rep.AssemblyRefs) > 0 {
		b.WriteString("\n" + heading("Assembly refs") + "\n")
		for _, r := range rep.AssemblyRefs {
			fmt.Fprintf(&b, "  %s\n", formatAssemblyRef(r))
		}
	}
	if len(rep.Resources) > 0 {
		b.WriteString("\n" + heading("Resources") + "\n")
		for _, r := range rep.Resources {
			name := "(unnamed)"
			if r.Name != nil {
				name = *r.Name
			}
			fmt.Fprintf(&b, "  %-20s offset %#x  length %d\n", value(name), r.Offset, r.Length)
		}
	}
	writeList(&b, heading("Module refs"), rep.ModuleRefs)
	writeList(&b, heading("Constants"), rep.Constants)
	if len(rep.UserStrings) > 0 {
		b.WriteString("\n" + heading("User strings") + "\n")
		for _, s := range rep.UserStrings {
			fmt.Fprintf(&b, "  %q\n", decodeUTF16(s))
		}
	}
	if len(rep.FieldOffsets) > 0 {
		b.WriteString("\n" + heading("Field offsets") + "\n")
		for _, off := range rep.FieldOffsets {
			fmt.Fprintf(&b, "  %#x\n", off)
		}
	}
	return b.String()
}

func writeList(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString("\n" + heading + "\n")
	for _, it := range items {
		fmt.Fprintf(b, "  %s\n", it)
	}
}

func formatAssembly(a *dotnet.Assembly) string {
	s := formatVersion(a.Version)
	if a.Name != nil {
		s = *a.Name + " " + s
	}
	if a.Culture != nil {
		s += " (" + *a.Culture + ")"
	}
	return s
}

func formatAssemblyRef(r dotnet.AssemblyRef) string {
	s := formatVersion(r.Version)
	if r.Name != nil {
		s = *r.Name + " " + s
	}
	if r.PublicKeyOrToken != nil {
		s += " key " + hex.EncodeToString([]byte(*r.PublicKeyOrToken))
	}
	return s
}

func formatVersion(v dotnet.Version) string {
	return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Build, v.Revision)
}

// decodeUTF16 renders a #US heap entry, which is UTF-16LE, as readable
// text. Entries with an odd byte count fall back to the raw bytes.
func decodeUTF16(s string) string {
	if len(s)%2 != 0 {
		return s
	}
	units := make([]uint16, 0, len(s)/2)
	for i := 0; i+1 < len(s); i += 2 {
		units = append(units, uint16(s[i])|uint16(s[i+1])<<8)
	}
	return string(utf16.Decode(units))
}
