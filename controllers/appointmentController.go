package controllers

import (
	"CareChain/handlers"
	"CareChain/middlewares"
	"CareChain/models"

	"github.com/gin-gonic/gin"
)

type AppointmentController struct {
	Appointments *handlers.AppointmentHandler
	WorkItems    *handlers.WorkItemHandler
	Auth         gin.HandlerFunc
}

// NewAppointmentController creates a controller whose routes all require auth.
func NewAppointmentController(appointments *handlers.AppointmentHandler, workItems *handlers.WorkItemHandler, auth gin.HandlerFunc) *AppointmentController {
	return &AppointmentController{
		Appointments: appointments,
		WorkItems:    workItems,
		Auth:         auth,
	}
}

// RegisterRoutes mounts the workflow API under /api. Ownership checks happen
// in the services; role middleware only rejects roles that can never succeed.
func (ac *AppointmentController) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api", ac.Auth)

	appointments := api.Group("/appointments")
	{
		appointments.POST("", middlewares.RoleAuthMiddleware(models.RolePatient, models.RoleAdmin), ac.Appointments.CreateAppointment)
		appointments.GET("", middlewares.RoleAuthMiddleware(models.RoleAdmin), ac.Appointments.ListAppointments)
		appointments.GET("/:id", ac.Appointments.GetAppointment)
		appointments.PUT("/:id", middlewares.RoleAuthMiddleware(models.RolePatient), ac.Appointments.UpdateAppointment)
		appointments.DELETE("/:id", middlewares.RoleAuthMiddleware(models.RolePatient, models.RoleAdmin), ac.Appointments.DeleteAppointment)

		review := middlewares.RoleAuthMiddleware(models.RoleDoctor, models.RoleAdmin)
		appointments.POST("/:id/approve", review, ac.Appointments.ApproveAppointment)
		appointments.POST("/:id/reject", review, ac.Appointments.RejectAppointment)
		appointments.POST("/:id/complete", review, ac.Appointments.CompleteAppointment)
		appointments.POST("/:id/cancel", middlewares.RoleAuthMiddleware(models.RolePatient), ac.Appointments.CancelAppointment)
		appointments.POST("/:id/payment", middlewares.RoleAuthMiddleware(models.RoleAdmin), ac.Appointments.UpdatePayment)
	}

	doctors := api.Group("/doctors").Use(middlewares.RoleAuthMiddleware(models.RoleDoctor, models.RoleAdmin))
	{
		doctors.GET("/:id/appointments", ac.Appointments.ListDoctorAppointments)
		doctors.GET("/:id/schedule", ac.Appointments.DoctorSchedule)
	}

	patients := api.Group("/patients").Use(middlewares.RoleAuthMiddleware(models.RolePatient, models.RoleAdmin))
	{
		patients.GET("/:id/appointments", ac.Appointments.ListPatientAppointments)
	}

	workItems := api.Group("/work-items").Use(middlewares.RoleAuthMiddleware(models.RoleTechnician, models.RoleAdmin))
	{
		workItems.GET("", ac.WorkItems.ListWorkItems)
		workItems.POST("/:id/report", middlewares.RoleAuthMiddleware(models.RoleTechnician), ac.WorkItems.SubmitReport)
	}
}
