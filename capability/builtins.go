package capability

// RegisterBuiltins registers the builtin capability set on a registry:
// the response actions (NONE, IGNORE, CONTINUE), the room participation
// actions (follow/unfollow, mute/unmute), the FACT and GOAL evaluators and
// the TIME provider. NONE is registered first so it wins ties during fuzzy
// resolution and heads the catalog offered to the model.
func RegisterBuiltins(r *Registry) {
	r.RegisterAction(NewNoneAction())
	r.RegisterAction(NewIgnoreAction())
	r.RegisterAction(NewContinueAction())
	r.RegisterAction(NewFollowRoomAction())
	r.RegisterAction(NewUnfollowRoomAction())
	r.RegisterAction(NewMuteRoomAction())
	r.RegisterAction(NewUnmuteRoomAction())

	r.RegisterEvaluator(NewFactEvaluator())
	r.RegisterEvaluator(NewGoalEvaluator())

	r.RegisterProvider(NewTimeProvider())
}
