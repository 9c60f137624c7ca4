package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jessevdk/go-flags"

	"pixybot/internal/core"
	"pixybot/internal/fsm"
	"pixybot/internal/hardware"
	"pixybot/internal/logger"
	"pixybot/internal/messaging"
	"pixybot/internal/types"
)

type Options struct {
	LogLevel string `long:"log" env:"PIXYBOT_LOG" default:"info" description:"Log level (none, error, warn, info, debug)"`

	StepperPort string `long:"stepper-port" env:"PIXYBOT_STEPPER_PORT" default:"/dev/ttyACM0" description:"Serial port of the stepper board"`
	StepperBaud int    `long:"stepper-baud" env:"PIXYBOT_STEPPER_BAUD" default:"115200" description:"Stepper board baud rate"`
	PixyPort    string `long:"pixy-port" env:"PIXYBOT_PIXY_PORT" default:"/dev/ttyS0" description:"Serial port of the Pixy camera"`
	PixyBaud    int    `long:"pixy-baud" env:"PIXYBOT_PIXY_BAUD" default:"19200" description:"Pixy baud rate"`
	LCD         string `long:"lcd" env:"PIXYBOT_LCD" default:"/dev/lcd" description:"Character LCD device"`

	Lines []string `long:"line" env:"PIXYBOT_LINES" env-delim:"," description:"Override a GPIO line, name=chip:line[:low|:high] (repeatable)"`

	SenseInterval time.Duration `long:"sense-interval" env:"PIXYBOT_SENSE_INTERVAL" default:"125ms" description:"IR sampling interval"`
	CyclePeriod   time.Duration `long:"cycle-period" env:"PIXYBOT_CYCLE_PERIOD" default:"0" description:"Control loop period, 0 runs back to back"`
	StartupDelay  time.Duration `long:"startup-delay" env:"PIXYBOT_STARTUP_DELAY" default:"3s" description:"Delay after vision bring-up"`
	ArmDelay      time.Duration `long:"arm-delay" env:"PIXYBOT_ARM_DELAY" default:"1s" description:"Delay between the start button and the loop"`

	Behaviors string  `long:"behaviors" env:"PIXYBOT_BEHAVIORS" default:"cruise,pixy-follow,ir-avoid" description:"Behavior order, lowest priority first"`
	Signature uint16  `long:"signature" env:"PIXYBOT_SIGNATURE" default:"1" description:"Pixy signature to steer toward"`
	Kp        float64 `long:"kp" env:"PIXYBOT_KP" default:"1" description:"Steering proportional gain"`
	Ki        float64 `long:"ki" env:"PIXYBOT_KI" default:"0" description:"Steering integral gain"`
	Kd        float64 `long:"kd" env:"PIXYBOT_KD" default:"0" description:"Steering derivative gain"`

	VisionReadout bool `long:"vision-readout" env:"PIXYBOT_VISION_READOUT" description:"Show Pixy observations on the LCD instead of the robot state"`

	Redis      string `long:"redis" env:"PIXYBOT_REDIS" default:"127.0.0.1:6379" description:"Redis address for telemetry and commands, empty to disable"`
	MQTTBroker string `long:"mqtt-broker" env:"PIXYBOT_MQTT_BROKER" description:"MQTT broker URL, empty to disable"`
	MQTTPrefix string `long:"mqtt-prefix" env:"PIXYBOT_MQTT_PREFIX" default:"pixybot" description:"MQTT topic prefix"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	parser.LongDescription = "Behavior-based controller for the Pixy robot"

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	level, err := logger.ParseLogLevel(opts.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Create standard logger with appropriate format
	var stdLogger *log.Logger
	if os.Getenv("INVOCATION_ID") != "" {
		// Running under systemd, use minimal format
		stdLogger = log.New(os.Stdout, "", 0)
	} else {
		// Running interactively, use timestamps
		stdLogger = log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds|log.Lmsgprefix)
	}
	l := logger.NewLogger(stdLogger, level)

	session := uuid.NewString()
	l.Infof("Starting pixybot, session %s", session)

	if err := run(opts, session, l); err != nil {
		l.Fatalf("%v", err)
	}
	l.Infof("Shutdown complete")
}

func lineOverrides(specs []string) (inputs, outputs map[string]hardware.LineMapping, err error) {
	inputs = make(map[string]hardware.LineMapping, len(hardware.DiMappings))
	for k, v := range hardware.DiMappings {
		inputs[k] = v
	}
	outputs = make(map[string]hardware.LineMapping, len(hardware.DoMappings))
	for k, v := range hardware.DoMappings {
		outputs[k] = v
	}

	for _, spec := range specs {
		name, value, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, nil, fmt.Errorf("invalid line override %q", spec)
		}
		m, err := hardware.ParseLineMapping(value)
		if err != nil {
			return nil, nil, fmt.Errorf("line %s: %w", name, err)
		}
		switch {
		case name == hardware.ChannelIndicator:
			outputs[name] = m
		default:
			if _, ok := inputs[name]; !ok {
				return nil, nil, fmt.Errorf("unknown line %q", name)
			}
			inputs[name] = m
		}
	}
	return inputs, outputs, nil
}

func run(opts Options, session string, l *logger.Logger) error {
	inputs, outputs, err := lineOverrides(opts.Lines)
	if err != nil {
		return err
	}

	cfg := core.DefaultConfig()
	cfg.SenseInterval = opts.SenseInterval
	cfg.CyclePeriod = opts.CyclePeriod
	cfg.Timing = fsm.Timing{StartupDelay: opts.StartupDelay, ArmDelay: opts.ArmDelay}
	cfg.Behaviors = strings.Split(opts.Behaviors, ",")
	cfg.Follow.Signature = opts.Signature
	cfg.Follow.Kp = opts.Kp
	cfg.Follow.Ki = opts.Ki
	cfg.Follow.Kd = opts.Kd
	cfg.VisionReadout = opts.VisionReadout

	// Hardware
	io := hardware.NewLinuxHardwareIO(l, inputs, outputs)
	if err := io.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize GPIO: %w", err)
	}
	defer io.Cleanup()

	lcd := hardware.NewCharLCD(opts.LCD, l)
	if err := lcd.Open(); err != nil {
		return fmt.Errorf("failed to open LCD: %w", err)
	}
	defer lcd.Close()

	stepper, err := hardware.OpenStepperLink(opts.StepperPort, opts.StepperBaud, l)
	if err != nil {
		return fmt.Errorf("failed to open stepper link: %w", err)
	}
	defer stepper.Close()

	pixy := hardware.NewPixyUART(opts.PixyPort, opts.PixyBaud, l)
	defer pixy.Close()

	// Telemetry
	var robot *core.Robot
	var redis *messaging.RedisClient
	var sinks []messaging.Publisher

	if opts.Redis != "" {
		redis = messaging.NewRedisClient(opts.Redis, session, l, messaging.Callbacks{
			StartCallback: func() error { return robot.RequestStart() },
		})
		if err := redis.Connect(); err != nil {
			l.Warnf("Redis unavailable, continuing without it: %v", err)
			redis = nil
		} else {
			defer redis.Close()
			sinks = append(sinks, redis)
		}
	}

	if opts.MQTTBroker != "" {
		mq := messaging.NewMQTTPublisher(opts.MQTTBroker, opts.MQTTPrefix, session, l)
		if err := mq.Connect(); err != nil {
			l.Warnf("MQTT unavailable, continuing without it: %v", err)
		} else {
			defer mq.Close()
			sinks = append(sinks, mq)
		}
	}

	telemetry := messaging.NewAsyncPublisher(l, 64, sinks...)
	defer telemetry.Close()

	robot, err = core.NewRobot(cfg, io, stepper, pixy, lcd, telemetry, l)
	if err != nil {
		return err
	}

	if redis != nil {
		if err := redis.StartListening(); err != nil {
			l.Warnf("Failed to listen for commands: %v", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err = robot.Run(ctx)
	if errors.Is(err, core.ErrVisionUnavailable) {
		// Halted with the error on the display until someone restarts us.
		l.Errorf("%v", err)
		<-ctx.Done()
		err = nil
	}
	if err != nil {
		return err
	}

	l.Infof("Received shutdown signal, stopping motors")
	if err := stepper.Stop(types.BrakeOn); err != nil {
		l.Warnf("Failed to stop motors: %v", err)
	}
	return nil
}
