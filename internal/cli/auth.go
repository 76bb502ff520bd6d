package cli

import (
	"context"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/models"
)

type LoginCmd struct {
	Email    string `help:"Account email." required:""`
	Password string `help:"Account password. Prompted for when omitted." env:"TALLY_PASSWORD"`
}

func (c *LoginCmd) Run(ctx *Context) error {
	password, err := promptPassword(c.Password)
	if err != nil {
		return err
	}
	if err := ctx.Session.Login(context.Background(), c.Email, password); err != nil {
		return err
	}
	ctx.printf("Signed in as %s\n", c.Email)
	return nil
}

type RegisterCmd struct {
	Email     string `help:"Account email." required:""`
	Password  string `help:"Account password. Prompted for when omitted." env:"TALLY_PASSWORD"`
	FirstName string `help:"First name." name:"first-name"`
	LastName  string `help:"Last name." name:"last-name"`
	Username  string `help:"Username. Derived from the first name or email when omitted."`
}

func (c *RegisterCmd) Run(ctx *Context) error {
	password, err := promptPassword(c.Password)
	if err != nil {
		return err
	}

	username := c.Username
	if username == "" {
		username = models.DefaultUsername(c.FirstName, c.Email)
	}
	profile := models.Profile{
		Email:     c.Email,
		Username:  username,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Password:  password,
	}
	if err := ctx.Session.Register(context.Background(), profile); err != nil {
		return errors.WithMessage(err, constants.MsgRegisterFailed)
	}
	ctx.printf("Registered and signed in as %s (%s)\n", c.Email, username)
	return nil
}

type LogoutCmd struct{}

func (c *LogoutCmd) Run(ctx *Context) error {
	ctx.Session.Logout()
	ctx.printf("Signed out\n")
	return nil
}

func promptPassword(given string) (string, error) {
	if given != "" {
		return given, nil
	}
	var password string
	err := huh.NewInput().
		Title("Password").
		EchoMode(huh.EchoModePassword).
		Value(&password).
		Run()
	return password, err
}
