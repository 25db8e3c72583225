package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"
)

type cliSettings struct {
	referenceVideo, distortionVideo string

	width, height int
	format        string
	fps           string

	method    string
	statsFile string

	outputPath string
	configPath string
	queueBound int
}

var settings cliSettings

const flagGroupAnnotation = "group"

func registerFlags() *bool {
	pflag.CommandLine.SortFlags = false
	pflag.Usage = cliUsage

	// General Flags
	pflag.StringVarP(&settings.referenceVideo, "reference", "r", "", "The reference raw video path the distorted video will be compared against")
	pflag.StringVarP(&settings.distortionVideo, "distortion", "d", "", "The distorted raw video path that will be compared to the reference")
	pflag.StringVar(&settings.method, "method", "ssim", "Method to compare video frames [ssim, psnr]")
	pflag.StringVar(&settings.statsFile, "stats-file", "-", "File to store per-frame difference information, '-' for stdout")
	pflag.StringVarP(&settings.configPath, "config", "c", "", "YAML config file; explicit flags override its values")
	printHelp := pflag.BoolP("help", "h", false, "Show this help message")

	// Stream format. Raw files carry no metadata so the caller supplies it.
	var streamSection string = "Stream Options"
	pflag.IntVar(&settings.width, "width", 0, "Frame width of both inputs in pixels")
	addFlagToHelpGroup("width", streamSection)

	pflag.IntVar(&settings.height, "height", 0, "Frame height of both inputs in pixels")
	addFlagToHelpGroup("height", streamSection)

	pflag.StringVar(&settings.format, "format", "I420", "Pixel format of both inputs (e.g. I420, NV12, YUY2, RGBA, GRAY8)")
	addFlagToHelpGroup("format", streamSection)

	pflag.StringVarP(&settings.fps, "fps", "f", "30/1", "Framerate of both inputs as num/den or an integer")
	addFlagToHelpGroup("fps", streamSection)

	// Output Settings
	var outputsSection string = "Output Options"
	pflag.StringVarP(&settings.outputPath, "output", "o", "", "Output path for the forwarded reference stream. Empty disables output")
	addFlagToHelpGroup("output", outputsSection)

	pflag.IntVar(&settings.queueBound, "queue-bound", 2, "Per-input frame queue bound before producers block")
	addFlagToHelpGroup("queue-bound", outputsSection)

	return printHelp
}

func cliUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n", filepath.Base(os.Args[0]))

	// Group flags by annotation, default to "General Options"
	helpGroupLists := make(map[string][]*pflag.Flag)
	var helpGroupOrder []string
	var longestFlagName, longestHelpMessage, longestDefaultVal int

	pflag.CommandLine.VisitAll(func(f *pflag.Flag) {
		currentFlagAnnotations := f.Annotations[flagGroupAnnotation]
		flagGroup := "General Options"
		if len(currentFlagAnnotations) > 0 {
			flagGroup = currentFlagAnnotations[0]
		}

		if _, helpGroupExists := helpGroupLists[flagGroup]; !helpGroupExists {
			helpGroupLists[flagGroup] = []*pflag.Flag{}
			helpGroupOrder = append(helpGroupOrder, flagGroup)
		}
		helpGroupLists[flagGroup] = append(helpGroupLists[flagGroup], f)

		longestFlagName = max(longestFlagName, len(f.Name)+1)
		longestHelpMessage = max(longestHelpMessage, len(f.Usage)+1)
		longestDefaultVal = max(longestDefaultVal, len(getDefaultString(f))+1)
	})

	for _, helpGroupName := range helpGroupOrder {
		flags := helpGroupLists[helpGroupName]
		if len(flags) == 0 {
			continue
		}

		fmt.Fprint(os.Stderr, colorText(hiYellow, helpGroupName+":\n"))
		for _, f := range flags {
			printFormattedFlag(
				f, longestFlagName, longestHelpMessage, longestDefaultVal)
		}
		fmt.Fprint(os.Stderr, "\n")
	}

	fmt.Fprintln(os.Stderr)
}

func printFormattedFlag(f *pflag.Flag, maxFlagName, maxHelpText, maxDef int) {
	defaultValue := getDefaultString(f)
	defaultValuePadding := strings.Repeat(" ", maxDef-len(defaultValue))

	helpPadding := strings.Repeat(" ", maxHelpText-len(f.Usage))
	defaultTxt := colorText(darkPurple, fmt.Sprintf(
		"%sDefault: %s%s", helpPadding, defaultValuePadding, defaultValue))

	flagPadding := strings.Repeat(" ", maxFlagName-len(f.Name))
	flagName := colorText(cyan, fmt.Sprintf("--%s%s", f.Name, flagPadding))

	usageText := colorText(green, f.Usage)

	fmt.Fprintf(os.Stderr, "\t%s %s   %s\n", flagName, usageText, defaultTxt)
}

// ANSI color codes. Color is dropped when stderr is not a terminal.

type color string

const (
	cyan       color = "\033[96m" // Bright cyan
	darkPurple color = "\033[38;5;55m"
	hiYellow   color = "\033[93m" // Bright yellow
	green      color = "\033[92m" // Bright green
)

const reset = "\033[0m"

var stderrIsTerminal = isatty.IsTerminal(os.Stderr.Fd()) ||
	isatty.IsCygwinTerminal(os.Stderr.Fd())

func colorText(c color, text string) string {
	if !stderrIsTerminal {
		return text
	}
	return string(c) + text + reset
}

func getDefaultString(f *pflag.Flag) string {
	if f.DefValue == "" {
		return "\"\""
	}
	return f.DefValue
}

func addFlagToHelpGroup(flagName string, helpGroupName string) {
	lookupFlag := pflag.Lookup(flagName)
	if lookupFlag == nil {
		panic("unknown flag: " + flagName)
	}

	if lookupFlag.Annotations == nil {
		lookupFlag.Annotations = map[string][]string{}
	}
	lookupFlag.Annotations[flagGroupAnnotation] = []string{helpGroupName}
}
