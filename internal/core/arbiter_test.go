package core

import (
	"testing"

	"pixybot/internal/types"
	"pixybot/internal/vision"
)

type recordingRunner struct {
	maneuvers []types.Maneuver
	seen      []types.MotorAction
	rc        *RobotContext
}

func (r *recordingRunner) RunManeuver(m types.Maneuver) {
	r.maneuvers = append(r.maneuvers, m)
	if r.rc != nil {
		r.seen = append(r.seen, r.rc.Action)
	}
}

func buildTestArbitrator(t *testing.T, order []string, runner ManeuverRunner) *Arbitrator {
	t.Helper()
	bs, err := BuildBehaviors(order, DefaultFollowConfig(), testLogger())
	if err != nil {
		t.Fatalf("BuildBehaviors failed: %v", err)
	}
	return NewArbitrator(bs, runner, testLogger())
}

func TestArbitrateCruiseOnly(t *testing.T) {
	rc := newTestContext()
	arb := buildTestArbitrator(t, DefaultBehaviorOrder, &recordingRunner{})

	arb.Arbitrate(rc)

	want := types.MotorAction{State: types.StateCruising, SpeedL: 100, SpeedR: 100, AccelL: 400, AccelR: 400}
	if !rc.Action.Equal(want) {
		t.Errorf("got %s, want %s", rc.Action, want)
	}
}

func TestArbitrateAvoidWinsWhenLast(t *testing.T) {
	rc := newTestContext()
	rc.Sensors.LeftIR = true
	rc.Sensors.Vision.Offer(vision.Observation{X: 200, Signature: 1})
	runner := &recordingRunner{rc: rc}
	arb := buildTestArbitrator(t, DefaultBehaviorOrder, runner)

	arb.Arbitrate(rc)

	want := types.MotorAction{State: types.StateAvoiding, SpeedL: 200, SpeedR: 200, AccelL: 400, AccelR: 400}
	if !rc.Action.Equal(want) {
		t.Errorf("got %s, want %s", rc.Action, want)
	}
	if len(runner.maneuvers) != 1 {
		t.Fatalf("expected one maneuver, got %d", len(runner.maneuvers))
	}
	// The maneuver runs after the lower priority behaviors wrote their patch
	followed := types.MotorAction{State: types.StatePixyFollowing, SpeedL: 140, SpeedR: 60, AccelL: 400, AccelR: 400}
	if !runner.seen[0].Equal(followed) {
		t.Errorf("maneuver saw %s, want %s", runner.seen[0], followed)
	}
	if rc.Sensors.Vision.Fresh() {
		t.Error("observation should have been consumed")
	}
}

func TestArbitrateFollowWinsWhenLast(t *testing.T) {
	rc := newTestContext()
	rc.Sensors.RightIR = true
	rc.Sensors.Vision.Offer(vision.Observation{X: 200, Signature: 1})
	runner := &recordingRunner{}
	arb := buildTestArbitrator(t, []string{BehaviorCruise, BehaviorIRAvoid, BehaviorPixyFollow}, runner)

	arb.Arbitrate(rc)

	// Follow only writes state and speeds; accel comes from avoid.
	want := types.MotorAction{State: types.StatePixyFollowing, SpeedL: 140, SpeedR: 60, AccelL: 400, AccelR: 400}
	if !rc.Action.Equal(want) {
		t.Errorf("got %s, want %s", rc.Action, want)
	}
	if len(runner.maneuvers) != 1 {
		t.Errorf("the maneuver still runs, got %d", len(runner.maneuvers))
	}
}

func TestArbitrateFieldMerge(t *testing.T) {
	rc := newTestContext()
	rc.Sensors.Vision.Offer(vision.Observation{X: 10, Signature: 7})
	arb := buildTestArbitrator(t, []string{BehaviorCruise, BehaviorPixyFollow}, nil)

	arb.Arbitrate(rc)

	want := types.MotorAction{State: types.StatePixyFollowing, SpeedL: 100, SpeedR: 100, AccelL: 400, AccelR: 400}
	if !rc.Action.Equal(want) {
		t.Errorf("got %s, want %s", rc.Action, want)
	}
}

func TestArbitrateWithoutRunnerSkipsManeuver(t *testing.T) {
	rc := newTestContext()
	rc.Sensors.LeftIR = true
	arb := buildTestArbitrator(t, []string{BehaviorIRAvoid}, nil)

	arb.Arbitrate(rc)

	if rc.Action.State != types.StateAvoiding {
		t.Errorf("expected avoiding, got %s", rc.Action.State)
	}
}
