package handler

type ContextKey string

var (
	RoleCtxKey     ContextKey = "role"
	SubCtxKey      ContextKey = "sub"
	MyInfoCtx      ContextKey = "myInfo"
	MachineCtx     ContextKey = "machine"
	AppointmentCtx ContextKey = "appointment"
	ReservationCtx ContextKey = "reservation"
)
