package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"galvo/host/controller"
)

var (
	mock    = flag.Bool("mock", false, "Use the simulated transport (no hardware)")
	lens    = flag.Float64("lens", 150.0, "Scan field width in mm")
	verbose = flag.Bool("verbose", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	settings := controller.DefaultSettings()
	settings.Mock = *mock
	settings.LensSize = *lens

	ctrl := controller.New(settings, log)
	defer ctrl.Disconnect()

	fmt.Println("galvo-host - LMC galvo controller console")
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
		parts := strings.Fields(line)
		cmd := parts[0]
		args := parts[1:]

		var err error
		switch cmd {
		case "quit", "exit", "q":
			fmt.Println("Goodbye!")
			return

		case "help", "?":
			printHelp()

		case "status":
			st, serr := ctrl.Status()
			if serr != nil {
				err = serr
				break
			}
			fmt.Printf("status: %04X %04X %04X %04X  ready=%v busy=%v\n",
				st[0], st[1], st[2], st[3], st.Ready(), st.Busy())

		case "version":
			v, verr := ctrl.GetVersion()
			if verr != nil {
				err = verr
				break
			}
			fmt.Printf("firmware version: 0x%04X\n", v)

		case "serial":
			v, serr := ctrl.GetSerialNo()
			if serr != nil {
				err = serr
				break
			}
			fmt.Printf("serial: 0x%04X\n", v)

		case "pos":
			x, y, perr := ctrl.GetPosition()
			if perr != nil {
				err = perr
				break
			}
			fmt.Printf("galvo position: (%d, %d)\n", x, y)

		case "goto":
			var x, y int
			if x, y, err = parseXY(args); err == nil {
				err = ctrl.SetXY(x, y)
			}

		case "mark":
			var x, y int
			if x, y, err = parseXY(args); err == nil {
				err = ctrl.Mark(x, y)
			}

		case "trace":
			var x, y int
			if x, y, err = parseXY(args); err == nil {
				err = ctrl.Light(x, y)
			}

		case "program":
			err = ctrl.ProgramMode()

		case "light":
			err = ctrl.LightMode()

		case "rapid":
			err = ctrl.RapidMode()

		case "lamp-on":
			err = ctrl.LightOn()

		case "lamp-off":
			err = ctrl.LightOff()

		case "power":
			var v float64
			if v, err = parseOne(args); err == nil {
				err = ctrl.SetPower(v)
			}

		case "speed":
			var v float64
			if v, err = parseOne(args); err == nil {
				err = ctrl.SetMarkSpeed(v)
			}

		case "freq":
			var v float64
			if v, err = parseOne(args); err == nil {
				err = ctrl.SetFrequency(v)
			}

		case "pause":
			err = ctrl.Pause()

		case "resume":
			err = ctrl.Resume()

		case "abort":
			err = ctrl.Abort()

		case "raw":
			err = rawCommand(ctrl, args)

		default:
			fmt.Printf("Unknown command: %s (type 'help' for available commands)\n", cmd)
		}

		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
}

func parseXY(args []string) (int, int, error) {
	if len(args) != 2 {
		return 0, 0, fmt.Errorf("expected: <x> <y>")
	}
	x, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, 0, fmt.Errorf("bad x coordinate: %v", err)
	}
	y, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, 0, fmt.Errorf("bad y coordinate: %v", err)
	}
	return x, y, nil
}

func parseOne(args []string) (float64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected one numeric argument")
	}
	v, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return 0, fmt.Errorf("bad value: %v", err)
	}
	return v, nil
}

// rawCommand replays a raw opcode with optional parameters, e.g.
// "raw 0x0005" or "raw 0x8001 100 100".
func rawCommand(ctrl *controller.Controller, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("expected: <opcode> [params...]")
	}
	id, err := strconv.ParseUint(strings.TrimPrefix(args[0], "0x"), 16, 16)
	if err != nil {
		return fmt.Errorf("bad opcode: %v", err)
	}
	params := make([]uint16, 0, len(args)-1)
	for _, a := range args[1:] {
		p, err := strconv.ParseUint(a, 10, 16)
		if err != nil {
			return fmt.Errorf("bad parameter %q: %v", a, err)
		}
		params = append(params, uint16(p))
	}
	return ctrl.RawWrite(uint16(id), params...)
}

func printHelp() {
	fmt.Println("\nAvailable commands:")
	fmt.Println("  status          - Read the controller status word")
	fmt.Println("  version         - Query firmware version")
	fmt.Println("  serial          - Query controller serial number")
	fmt.Println("  pos             - Query actual galvo position")
	fmt.Println("  goto <x> <y>    - Immediate reposition (no list)")
	fmt.Println("  mark <x> <y>    - Queue a beam-on move")
	fmt.Println("  trace <x> <y>   - Queue a pointer-on move")
	fmt.Println("  program         - Enter program (marking) mode")
	fmt.Println("  light           - Enter light (pointer) mode")
	fmt.Println("  rapid           - Flush the list and return to rapid mode")
	fmt.Println("  lamp-on/off     - Toggle the pointer diode immediately")
	fmt.Println("  power <pct>     - Set laser power")
	fmt.Println("  speed <mm/s>    - Set mark speed")
	fmt.Println("  freq <kHz>      - Set q-switch frequency")
	fmt.Println("  pause/resume    - Pause or resume list execution")
	fmt.Println("  abort           - Stop everything and reset the list")
	fmt.Println("  raw <op> [p...] - Send a raw opcode")
	fmt.Println("  quit/exit/q     - Exit the program")
	fmt.Println()
}
