package handler

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/makerspace-booking/backend/internal/config"
	"github.com/sysu-ecnc-dev/makerspace-booking/backend/internal/domain"
	"github.com/sysu-ecnc-dev/makerspace-booking/backend/internal/repository"
	"github.com/sysu-ecnc-dev/makerspace-booking/backend/internal/schedule"
)

type Handler struct {
	validate      *validator.Validate
	config        *config.Config
	repository    *repository.Repository
	translator    ut.Translator
	notifyChannel *amqp.Channel
	redisClient   *redis.Client
	locations     *schedule.LocationCache

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, repo *repository.Repository, notifyCh *amqp.Channel, rdb *redis.Client) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:      validate,
		config:        cfg,
		repository:    repo,
		translator:    trans,
		notifyChannel: notifyCh,
		redisClient:   rdb,
		locations:     schedule.NewLocationCache(),

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)

	// 认证相关
	h.Mux.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
	})

	// 以下 API 必须要在登录后才允许调用
	h.Mux.Group(func(r chi.Router) {
		r.Use(h.auth)
		r.Use(h.myInfo)

		r.Route("/my-info", func(r chi.Router) {
			r.Get("/", h.GetMyInfo)
			r.Get("/appointments", h.GetMyAppointments)
			r.Get("/reservations", h.GetMyReservations)
			r.Get("/checkouts", h.GetMyCheckouts)
		})

		r.Route("/users", func(r chi.Router) {
			r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Post("/", h.CreateUser)
			r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Get("/", h.GetAllUserInfo)
			r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Patch("/{id}", h.UpdateUser)
		})

		r.Route("/machines", func(r chi.Router) {
			r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Post("/", h.CreateMachine)
			r.Get("/", h.GetAllMachines)
			r.Route("/{id}", func(r chi.Router) {
				// 可用时段查询永远成功，设备不存在或已停用时同样返回空列表，
				// 因此不挂 machineInfo（它会对不存在的设备直接报错）
				r.Get("/available-slots", h.GetAvailableSlots)

				r.Group(func(r chi.Router) {
					r.Use(h.machineInfo)
					r.Get("/", h.GetMachine)
					r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Patch("/", h.UpdateMachine)
					r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Delete("/checkouts/{userID}", h.RevokeCheckout)
				})
			})
		})

		r.Route("/availability-rules", func(r chi.Router) {
			r.With(h.RequiredRole([]domain.Role{domain.RoleManager, domain.RoleAdmin})).Post("/", h.CreateAvailabilityRule)
			r.With(h.RequiredRole([]domain.Role{domain.RoleManager, domain.RoleAdmin})).Get("/mine", h.GetMyAvailabilityRules)
			r.With(h.RequiredRole([]domain.Role{domain.RoleManager, domain.RoleAdmin})).Delete("/{id}", h.DeactivateAvailabilityRule)
		})

		r.Route("/appointments", func(r chi.Router) {
			r.Post("/", h.RequestAppointment)
			r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Get("/pending", h.GetPendingAppointments)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.appointmentInfo)
				r.Get("/", h.GetAppointment)
				r.Get("/events", h.GetAppointmentEvents)
				r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Post("/moderate", h.ModerateAppointment)
				r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Post("/finalize", h.FinalizeAppointment)
				r.Post("/cancel", h.CancelAppointment)
			})
		})

		r.Route("/reservations", func(r chi.Router) {
			r.Post("/", h.CreateReservation)
			r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Get("/pending", h.GetPendingReservations)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.reservationInfo)
				r.Get("/", h.GetReservation)
				r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Post("/moderate", h.ModerateReservation)
				r.Post("/cancel", h.CancelReservationByMember)
			})
		})
	})
}
