package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"ee24/host/config"
	"ee24/host/mcu"
	"ee24/host/serial"
)

var (
	device     = flag.String("device", "", "Serial device path (overrides the config file)")
	baud       = flag.Int("baud", 0, "Baud rate (ignored for USB CDC)")
	configPath = flag.String("config", "", "JSON configuration file")
	simulate   = flag.Bool("sim", false, "Run against an in-process firmware with simulated chips")
	verbose    = flag.Bool("verbose", false, "Enable verbose output")
	debug      = flag.Bool("debug", false, "Enable firmware debug output and bus tracing")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	m := mcu.NewMCU()
	m.SetVerbose(*verbose)
	m.Timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond

	if *simulate {
		fmt.Println("Starting simulated firmware...")
		port, err := startSim(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		m.ConnectPort(port)
	} else {
		fmt.Printf("Connecting to MCU on %s...\n", cfg.Serial.Device)
		err := m.ConnectWithConfig(&serial.Config{
			Device:      cfg.Serial.Device,
			Baud:        cfg.Serial.Baud,
			ReadTimeout: cfg.Serial.ReadTimeoutMS,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to connect: %v\n", err)
			os.Exit(1)
		}
	}
	defer m.Close()

	c := newConsole(m, cfg, os.Stdout)
	if err := c.setup(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// commands given on the command line run without a prompt
	if flag.NArg() > 0 {
		for _, line := range flag.Args() {
			if _, err := c.exec(line); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}
		return
	}

	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		quit, err := c.exec(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		if quit {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadFile(*configPath); err != nil {
			return nil, err
		}
	}

	if *device != "" {
		cfg.Serial.Device = *device
	}
	if *baud != 0 {
		cfg.Serial.Baud = *baud
	}
	if *debug {
		cfg.Debug = true
	}
	if cfg.Serial.Device == "" && !*simulate {
		cfg.Serial.Device = "/dev/ttyACM0"
	}
	return cfg, nil
}
