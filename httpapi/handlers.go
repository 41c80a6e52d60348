package httpapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-stockroom"
	"github.com/goliatone/go-stockroom/dashboard"
	"github.com/goliatone/go-stockroom/inventory"
)

// SessionView is the public view of the auth state. Tokens never leave the
// process.
type SessionView struct {
	State         stockroom.AuthState    `json:"state"`
	Authenticated bool                   `json:"authenticated"`
	Loading       bool                   `json:"loading"`
	User          *stockroom.UserProfile `json:"user,omitempty"`
}

type credentialsPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type confirmPayload struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type forgotPayload struct {
	Email string `json:"email"`
}

type resetPayload struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

func (s *Server) sessionView() SessionView {
	view := SessionView{
		State:         s.session.State(),
		Authenticated: s.session.IsAuthenticated(),
		Loading:       s.session.IsLoading(),
	}
	if user, ok := s.session.User(); ok {
		view.User = &user
	}
	return view
}

func (s *Server) SessionShow(c *fiber.Ctx) error {
	return c.JSON(s.sessionView())
}

func (s *Server) LoginPost(c *fiber.Ctx) error {
	payload := new(credentialsPayload)
	if err := bind(c, payload); err != nil {
		return err
	}

	if err := s.session.Login(c.UserContext(), payload.Email, payload.Password); err != nil {
		return err
	}

	return c.JSON(s.sessionView())
}

func (s *Server) LogoutPost(c *fiber.Ctx) error {
	s.session.Logout(c.UserContext())
	return c.JSON(s.sessionView())
}

func (s *Server) SignUpPost(c *fiber.Ctx) error {
	payload := new(credentialsPayload)
	if err := bind(c, payload); err != nil {
		return err
	}

	result, err := s.session.SignUp(c.UserContext(), payload.Email, payload.Password)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

func (s *Server) ConfirmSignUpPost(c *fiber.Ctx) error {
	payload := new(confirmPayload)
	if err := bind(c, payload); err != nil {
		return err
	}

	if err := s.session.ConfirmSignUp(c.UserContext(), payload.Email, payload.Code); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"confirmed": true})
}

func (s *Server) ForgotPasswordPost(c *fiber.Ctx) error {
	payload := new(forgotPayload)
	if err := bind(c, payload); err != nil {
		return err
	}

	delivery, err := s.session.ForgotPassword(c.UserContext(), payload.Email)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"delivery": delivery})
}

func (s *Server) ConfirmPasswordPost(c *fiber.Ctx) error {
	payload := new(resetPayload)
	if err := bind(c, payload); err != nil {
		return err
	}

	if err := s.session.ConfirmPassword(c.UserContext(), payload.Email, payload.Code, payload.NewPassword); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"reset": true})
}

func (s *Server) ItemsIndex(c *fiber.Ctx) error {
	items, err := s.items.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(items)
}

func (s *Server) ItemsShow(c *fiber.Ctx) error {
	item, err := s.items.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(item)
}

func (s *Server) ItemsCreate(c *fiber.Ctx) error {
	input := new(inventory.ItemInput)
	if err := bind(c, input); err != nil {
		return err
	}

	item, err := s.items.Create(c.UserContext(), *input)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}

func (s *Server) ItemsUpdate(c *fiber.Ctx) error {
	patch := new(inventory.ItemPatch)
	if err := bind(c, patch); err != nil {
		return err
	}
	patch.ItemID = c.Params("id")

	item, err := s.items.Update(c.UserContext(), *patch)
	if err != nil {
		return err
	}
	return c.JSON(item)
}

func (s *Server) ItemsDelete(c *fiber.Ctx) error {
	result, err := s.items.Delete(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (s *Server) DashboardShow(c *fiber.Ctx) error {
	summary, err := dashboard.Load(c.UserContext(), s.items, s.dashboard...)
	if err != nil {
		return err
	}
	return c.JSON(summary)
}

func bind(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	return nil
}
