package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"pixybot/internal/fsm"
	"pixybot/internal/hardware"
	"pixybot/internal/types"
	"pixybot/internal/vision"
)

type testRobot struct {
	robot   *Robot
	io      *mockHardwareIO
	act     *mockActuator
	vision  *mockVision
	display *mockDisplay
	pub     *mockPublisher
	clock   *fakeClock
}

func newTestRobot(t *testing.T, cfg Config) *testRobot {
	t.Helper()
	tr := &testRobot{
		io:      newMockHardwareIO(),
		act:     &mockActuator{},
		vision:  &mockVision{},
		display: &mockDisplay{},
		pub:     &mockPublisher{},
		clock:   newFakeClock(),
	}
	r, err := NewRobot(cfg, tr.io, tr.act, tr.vision, tr.display, tr.pub, testLogger())
	if err != nil {
		t.Fatalf("NewRobot failed: %v", err)
	}
	r.sampler.now = tr.clock.now
	tr.robot = r
	return tr
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.Timing = fsm.Timing{StartupDelay: 5 * time.Millisecond, ArmDelay: 5 * time.Millisecond}
	cfg.ButtonPoll = time.Millisecond
	cfg.CyclePeriod = time.Millisecond
	return cfg
}

func TestNewRobotRejectsUnknownBehavior(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Behaviors = []string{"cruise", "wander"}
	_, err := NewRobot(cfg, newMockHardwareIO(), &mockActuator{}, &mockVision{}, &mockDisplay{}, nil, testLogger())
	if err == nil {
		t.Fatal("expected an error for an unknown behavior")
	}
}

func TestCycleCruisesOnce(t *testing.T) {
	tr := newTestRobot(t, DefaultConfig())

	for i := 0; i < 5; i++ {
		tr.robot.Cycle()
	}

	calls := tr.act.Calls()
	if len(calls) != 2 || calls[0] != "accel 400 400" || calls[1] != "run 100 100" {
		t.Errorf("expected a single cruise dispatch, got %v", calls)
	}
	if lines := tr.display.Lines(); len(lines) != 1 || lines[0] != "Exploring..." {
		t.Errorf("unexpected display %v", lines)
	}
}

func TestCycleFollowsVision(t *testing.T) {
	tr := newTestRobot(t, DefaultConfig())
	tr.robot.Cycle()
	tr.act.reset()

	tr.robot.mailbox.Offer(vision.Observation{X: 200, Signature: 1})
	tr.robot.Cycle()

	calls := tr.act.Calls()
	if len(calls) != 2 || calls[1] != "run 140 60" {
		t.Errorf("unexpected calls %v", calls)
	}
	if got := tr.robot.Action().State; got != types.StatePixyFollowing {
		t.Errorf("state = %s", got)
	}

	// Stale observation: cruise takes over again
	tr.act.reset()
	tr.robot.Cycle()
	calls = tr.act.Calls()
	if len(calls) != 2 || calls[1] != "run 100 100" {
		t.Errorf("unexpected calls %v", calls)
	}
}

func TestCycleVisionReadoutReplacesStatus(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VisionReadout = true
	tr := newTestRobot(t, cfg)

	tr.robot.mailbox.Offer(vision.Observation{X: 120, Y: 80, Width: 10, Height: 12, Signature: 1})
	tr.robot.Cycle()

	lines := tr.display.Lines()
	if len(lines) != 1 || lines[0] != "Cent = ( 120, 80 )\nw: 10, h: 12\nsig#: 1" {
		t.Errorf("unexpected display %q", lines)
	}
	// Follow still consumed the observation
	if tr.robot.Action().State != types.StatePixyFollowing || tr.robot.mailbox.Fresh() {
		t.Errorf("follow did not run: %s", tr.robot.Action())
	}
}

func TestCycleAvoidRunsManeuverThenDispatches(t *testing.T) {
	tr := newTestRobot(t, DefaultConfig())
	tr.robot.Cycle() // arms the sampler, cruises
	tr.act.reset()

	tr.io.setInput(hardware.ChannelIRLeft, true)
	tr.clock.advance(DefaultSenseInterval)
	tr.robot.Cycle()

	want := []string{
		"stop 0",
		"move rev 250 200 400 / rev 250 200 400",
		"move rev 150 200 400 / fwd 150 200 400",
		"accel 400 400",
		"run 200 200",
	}
	calls := tr.act.Calls()
	if len(calls) != len(want) {
		t.Fatalf("got %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d: got %q, want %q", i, calls[i], want[i])
		}
	}
	if !tr.display.contains("AVOIDING...") || !tr.display.contains("Avoiding...") {
		t.Errorf("unexpected display %v", tr.display.Lines())
	}
	if tr.robot.Maneuvers() != 1 {
		t.Errorf("maneuvers = %d", tr.robot.Maneuvers())
	}

	// Still tripped on the next reading: the avoid action is re-dispatched
	// because the maneuver moved the wheels outside the gate.
	tr.act.reset()
	tr.clock.advance(DefaultSenseInterval)
	tr.robot.Cycle()
	calls = tr.act.Calls()
	if len(calls) != 5 || calls[4] != "run 200 200" {
		t.Errorf("expected a second maneuver and dispatch, got %v", calls)
	}
}

func TestRunVisionFailureHalts(t *testing.T) {
	tr := newTestRobot(t, fastConfig())
	tr.vision.openErr = errors.New("no response")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := tr.robot.Run(ctx)
	if !errors.Is(err, ErrVisionUnavailable) {
		t.Fatalf("expected ErrVisionUnavailable, got %v", err)
	}
	if !tr.display.contains("FATAL: Pixy failed.") {
		t.Errorf("fatal message not shown: %v", tr.display.Lines())
	}
	if !waitFor(time.Second, func() bool { return tr.robot.Lifecycle() == fsm.StateFatal }) {
		t.Errorf("expected fatal lifecycle, got %s", tr.robot.Lifecycle())
	}
	if calls := tr.act.Calls(); len(calls) != 0 {
		t.Errorf("motors touched after vision failure: %v", calls)
	}
	if tr.vision.mailbox != nil {
		t.Error("mailbox registered after vision failure")
	}
}

func TestRunBringUpWithButton(t *testing.T) {
	tr := newTestRobot(t, fastConfig())
	tr.io.setButtons(hardware.ButtonS3)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.robot.Run(ctx) }()

	dispatched := waitFor(2*time.Second, func() bool {
		for _, c := range tr.act.Calls() {
			if c == "run 100 100" {
				return true
			}
		}
		return false
	})
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if !dispatched {
		t.Fatalf("control loop never cruised, calls %v", tr.act.Calls())
	}
	for _, text := range []string{"Starting...", "Press S3 to begin", "Exploring..."} {
		if !tr.display.contains(text) {
			t.Errorf("display never showed %q: %v", text, tr.display.Lines())
		}
	}
	if tr.vision.mailbox != tr.robot.mailbox || !tr.vision.tracking {
		t.Error("vision sensor not registered and tracking")
	}

	want := []string{string(fsm.StateStarting), string(fsm.StateWaitingButton), string(fsm.StateArming), string(fsm.StateRunning)}
	got := tr.pub.Lifecycles()
	next := 0
	for _, s := range got {
		if next < len(want) && s == want[next] {
			next++
		}
	}
	if next != len(want) {
		t.Errorf("lifecycle %v does not pass through %v in order", got, want)
	}
}

func TestRunWaitsForStart(t *testing.T) {
	tr := newTestRobot(t, fastConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- tr.robot.Run(ctx) }()

	if !waitFor(time.Second, func() bool { return tr.robot.Lifecycle() == fsm.StateWaitingButton }) {
		t.Fatalf("never reached waiting-button, at %s", tr.robot.Lifecycle())
	}

	// No press: nothing moves
	time.Sleep(30 * time.Millisecond)
	if calls := tr.act.Calls(); len(calls) != 0 {
		t.Fatalf("motors moved before start: %v", calls)
	}

	if err := tr.robot.RequestStart(); err != nil {
		t.Fatalf("RequestStart failed: %v", err)
	}
	if !waitFor(time.Second, func() bool { return tr.robot.Lifecycle() == fsm.StateRunning }) {
		t.Fatalf("never reached running, at %s", tr.robot.Lifecycle())
	}
	if err := tr.robot.RequestStart(); err == nil {
		t.Error("RequestStart should fail once running")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunManeuverLifecycle(t *testing.T) {
	tr := newTestRobot(t, fastConfig())
	tr.robot.sampler.now = time.Now
	tr.io.setButtons(hardware.ButtonS3)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- tr.robot.Run(ctx) }()

	if !waitFor(2*time.Second, func() bool { return tr.robot.Lifecycle() == fsm.StateRunning }) {
		t.Fatalf("never reached running, at %s", tr.robot.Lifecycle())
	}

	tr.io.setInput(hardware.ChannelIRRight, true)
	if !waitFor(2*time.Second, func() bool { return tr.robot.Maneuvers() > 0 }) {
		t.Fatal("no maneuver ran")
	}
	tr.io.setInput(hardware.ChannelIRRight, false)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	lifecycles := tr.pub.Lifecycles()
	found := false
	for i := 0; i+1 < len(lifecycles); i++ {
		if lifecycles[i] == string(fsm.StateManeuvering) && lifecycles[i+1] == string(fsm.StateRunning) {
			found = true
		}
	}
	if !found {
		t.Errorf("expected running -> maneuvering -> running, got %v", lifecycles)
	}
}

func TestLifecycleBeforeRun(t *testing.T) {
	tr := newTestRobot(t, DefaultConfig())
	if got := tr.robot.Lifecycle(); got != fsm.StateInit {
		t.Errorf("Lifecycle = %s", got)
	}
	if err := tr.robot.RequestStart(); err == nil {
		t.Error("RequestStart before Run should fail")
	}
}

func TestRunReturnsWhenCancelledDuringManeuver(t *testing.T) {
	tr := newTestRobot(t, fastConfig())
	tr.robot.sampler.now = time.Now
	tr.act.moveDelay = 200 * time.Millisecond
	tr.io.setButtons(hardware.ButtonS3)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- tr.robot.Run(ctx) }()

	if !waitFor(2*time.Second, func() bool { return tr.robot.Lifecycle() == fsm.StateRunning }) {
		t.Fatalf("never reached running, at %s", tr.robot.Lifecycle())
	}

	tr.io.setInput(hardware.ChannelIRLeft, true)
	if !waitFor(2*time.Second, func() bool { return tr.act.Moves() > 0 }) {
		t.Fatal("maneuver never started")
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel during a maneuver")
	}

	// The maneuver itself is not interrupted
	moves := 0
	for _, c := range tr.act.Calls() {
		if strings.HasPrefix(c, "move ") {
			moves++
		}
	}
	if moves < 2 || moves%2 != 0 {
		t.Errorf("expected whole maneuvers of two moves, got %d moves", moves)
	}
}

func TestRunReturnsWhenCancelledDuringBringUp(t *testing.T) {
	cfg := fastConfig()
	cfg.Timing.StartupDelay = time.Hour
	tr := newTestRobot(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.robot.Run(ctx) }()

	if !waitFor(time.Second, func() bool { return tr.robot.Lifecycle() == fsm.StateStarting }) {
		t.Fatalf("never reached starting, at %s", tr.robot.Lifecycle())
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRemoteStartConcurrentWithRun(t *testing.T) {
	tr := newTestRobot(t, fastConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A remote start may arrive at any point, including before Run starts
	// the lifecycle.
	stop := make(chan struct{})
	polled := make(chan struct{})
	go func() {
		defer close(polled)
		for {
			select {
			case <-stop:
				return
			default:
			}
			tr.robot.Lifecycle()
			if err := tr.robot.RequestStart(); err == nil {
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	done := make(chan error, 1)
	go func() { done <- tr.robot.Run(ctx) }()

	if !waitFor(2*time.Second, func() bool { return tr.robot.Lifecycle() == fsm.StateRunning }) {
		t.Errorf("remote start never brought the robot up, at %s", tr.robot.Lifecycle())
	}
	close(stop)
	<-polled

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
