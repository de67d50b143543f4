package server

import (
	"quadra/internal/middleware"
	"quadra/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetProfile handles GET /api/profiles/:id
// @Summary Get profile
// @Tags profiles
// @Produce json
// @Param id path string true "Profile ID"
// @Success 200 {object} models.Profile
// @Failure 404 {object} models.ErrorResponse
// @Router /profiles/{id} [get]
func (s *Server) GetProfile(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return nil
	}

	profile, err := s.profileService.GetProfile(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profile)
}

// UpdateMyProfile handles PUT /api/profiles/me
// @Summary Update own profile
// @Tags profiles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param profile body service.UpdateProfileInput true "Profile"
// @Success 200 {object} models.Profile
// @Failure 400 {object} models.ErrorResponse
// @Router /profiles/me [put]
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req service.UpdateProfileInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	profile, err := s.profileService.UpdateProfile(c.UserContext(), middleware.ViewerID(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profile)
}
