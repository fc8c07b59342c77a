// Command wordjam runs the word-guessing game against the real-time music
// generation service, playing the generated audio as you guess.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	_ "net/http/pprof" // Register pprof handlers
	"os"
	"runtime"
	"runtime/pprof"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tmc/wordjam"
	"github.com/tmc/wordjam/player"
)

// setupLogging directs log output to a file; logging to stdout would
// corrupt the TUI.
func setupLogging(path string) *os.File {
	f, err := tea.LogToFile(path, "wordjam")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening log file '%s': %v\n", path, err)
		return nil
	}
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.SetOutput(f)
	return f
}

func main() {
	apiKeyFlag := flag.String("api-key", "", "API key (overrides GEMINI_API_KEY env var).")
	modelFlag := flag.String("model", wordjam.DefaultModel, "Music generation model ID to use.")
	wordsFlag := flag.String("words", "", "YAML word list file (words: [ ... ]). Built-in list if empty.")
	recordFlag := flag.String("record", "", "Tee generated audio into the given WAV file.")
	bufferFlag := flag.Float64("buffer", player.DefaultBufferTime, "Pre-roll buffer in seconds before playback starts.")
	logFlag := flag.String("log", os.Getenv("WORDJAM_LOG"), "Debug log file. Logging is disabled if empty.")
	noAudioFlag := flag.Bool("no-audio", false, "Run without an audio device (silent).")

	// Profiling flags (all with pprof- prefix)
	cpuprofile := flag.String("pprof-cpu", "", "Write cpu profile to `file`")
	memprofile := flag.String("pprof-mem", "", "Write memory profile to `file`")
	pprofServer := flag.String("pprof-server", "", "Enable pprof HTTP server on given address (e.g., 'localhost:6060')")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Word-guessing game driving real-time generative music.\n\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  GEMINI_API_KEY: API key (used if --api-key is not set).\n")
		fmt.Fprintf(os.Stderr, "  WORDJAM_LOG: Debug log file (used if --log is not set).\n")
		fmt.Fprintf(os.Stderr, "  WORDJAM_AUDIO_TRACE=1: Verbose audio pipeline tracing.\n")
	}
	flag.Parse()

	if *logFlag != "" {
		logFile := setupLogging(*logFlag)
		if logFile != nil {
			defer logFile.Close()
			log.Println("--- Application Start ---")
		}
	} else {
		log.SetOutput(io.Discard)
	}

	// CPU profiling
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatalf("Could not create CPU profile: %v", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatalf("Could not start CPU profile: %v", err)
		}
		defer pprof.StopCPUProfile()
	}

	// HTTP server for pprof
	if *pprofServer != "" {
		go func() {
			log.Printf("Starting pprof HTTP server on %s", *pprofServer)
			if err := http.ListenAndServe(*pprofServer, nil); err != nil {
				log.Printf("Error starting pprof HTTP server: %v", err)
			}
		}()
	}

	apiKey := *apiKeyFlag
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "Error: no API key. Set --api-key or GEMINI_API_KEY.")
		os.Exit(1)
	}

	opts := []wordjam.Option{
		wordjam.WithAPIKey(apiKey),
		wordjam.WithModel(*modelFlag),
		wordjam.WithBufferTime(*bufferFlag),
	}

	if *wordsFlag != "" {
		opts = append(opts, wordjam.WithWordFile(*wordsFlag))
	}
	if *recordFlag != "" {
		opts = append(opts, wordjam.WithRecordPath(*recordFlag))
	}

	// Open the audio device; fall back to silent output so the game still
	// runs on machines without audio hardware.
	if !*noAudioFlag {
		device, err := player.NewDevice(player.DefaultFormat)
		if err != nil {
			log.Printf("Audio device unavailable, running silent: %v", err)
			fmt.Fprintf(os.Stderr, "Warning: audio device unavailable (%v), running silent.\n", err)
		} else {
			opts = append(opts, wordjam.WithOutput(device))
		}
	}

	model, err := wordjam.New(opts...)
	if err != nil {
		log.Printf("Failed to initialize: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(model, tea.WithAltScreen())
	log.Println("Starting Bubble Tea program...")
	if _, err := p.Run(); err != nil {
		log.Printf("Error running program: %v", err)
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}

	// Write memory profile at exit if requested
	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			log.Printf("Could not create memory profile: %v", err)
		} else {
			defer f.Close()
			runtime.GC()
			if err := pprof.WriteHeapProfile(f); err != nil {
				log.Printf("Could not write memory profile: %v", err)
			}
		}
	}

	log.Println("--- Application End ---")
}
