package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"todoapp/internal/model"
	"todoapp/internal/service"
)

// AdminHandler handles admin accounts and the admin dashboard.
type AdminHandler struct {
	adminService service.AdminService
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(adminService service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// AdminSignupRequest represents an admin signup request.
type AdminSignupRequest struct {
	Username string `json:"username" validate:"max=64"`
	Password string `json:"password" validate:"max=72"`
	AdminKey string `json:"adminKey"`
}

// ResetPasswordRequest represents a forced password reset.
type ResetPasswordRequest struct {
	Username    string `json:"username"`
	NewPassword string `json:"newPassword" validate:"max=72"`
}

// UserTasksResponse lists the tasks of one user.
type UserTasksResponse struct {
	Username string       `json:"username"`
	Tasks    []model.Task `json:"tasks"`
}

// Signup godoc
// @Summary Register an admin account
// @Tags admin
// @Accept json
// @Produce json
// @Param request body AdminSignupRequest true "Admin signup data"
// @Success 201 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 429 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /admin/signup [post]
func (h *AdminHandler) Signup(c echo.Context) error {
	var req AdminSignupRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	if err := h.adminService.Signup(c.Request().Context(), req.Username, req.Password, req.AdminKey); err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusCreated, MessageResponse{Message: "Admin created successfully"})
}

// Login godoc
// @Summary Login admin
// @Tags admin
// @Accept json
// @Produce json
// @Param request body CredentialsRequest true "Admin credentials"
// @Success 200 {object} TokenResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 429 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /admin/login [post]
func (h *AdminHandler) Login(c echo.Context) error {
	var req CredentialsRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	token, err := h.adminService.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, TokenResponse{Token: token, Username: req.Username})
}

// Dashboard godoc
// @Summary Admin dashboard
// @Description Task statistics over every user plus the per-user task counts.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.Dashboard
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /admin/dashboard [get]
func (h *AdminHandler) Dashboard(c echo.Context) error {
	dash, err := h.adminService.Dashboard(c.Request().Context())
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, dash)
}

// ListUsers godoc
// @Summary List users
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.UserSummary
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /admin/users [get]
func (h *AdminHandler) ListUsers(c echo.Context) error {
	users, err := h.adminService.ListUsers(c.Request().Context())
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, users)
}

// UserTasks godoc
// @Summary List the tasks of a user
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param username path string true "Username"
// @Success 200 {object} UserTasksResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /admin/user/{username}/tasks [get]
func (h *AdminHandler) UserTasks(c echo.Context) error {
	username := c.Param("username")
	tasks, err := h.adminService.UserTasks(c.Request().Context(), username)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, UserTasksResponse{Username: username, Tasks: tasks})
}

// ResetPassword godoc
// @Summary Reset a user's password
// @Description Also revokes the user's outstanding tokens.
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ResetPasswordRequest true "Username and new password"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /admin/reset-password [post]
func (h *AdminHandler) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	if err := h.adminService.ResetPassword(c.Request().Context(), req.Username, req.NewPassword); err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Password reset successful"})
}

// DeleteUser godoc
// @Summary Delete a user and their tasks
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param username path string true "Username"
// @Success 200 {object} MessageResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /admin/user/{username} [delete]
// @Router /admin/delete-user/{username} [delete]
func (h *AdminHandler) DeleteUser(c echo.Context) error {
	if err := h.adminService.DeleteUser(c.Request().Context(), c.Param("username")); err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "User and tasks deleted successfully"})
}
