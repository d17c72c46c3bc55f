// Package presence implements the hub's presence-confirmation state
// machine: the retry logic that decides, under noisy and delayed
// evidence, whether a person is actually standing at the gate.
//
// A cycle runs IDLE → MOTION_PENDING → {PERSON_PENDING | STANDDOWN} →
// {CONFIRMED_WITH_FACE | CONFIRMED_WITHOUT_FACE} → IDLE. Motion reports
// start the cautious path: captures are requested on an escalating
// backoff schedule, racing each wait against an explicit person-confirmed
// signal, and the human is never bothered unless the evidence threshold
// is met. A direct person report skips the caution, notifies immediately,
// and runs a shorter retry schedule looking for a usable face image.
//
// Every wait point treats a timeout as "no evidence this round", never as
// a failure; schedules always run to completion or confirmation. At most
// one cycle is active at a time; a person report landing mid-cycle raises
// the person-confirmed signal instead of starting a second cycle.
package presence
