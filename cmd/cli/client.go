package main

import (
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"accounts/internal/database"
)

// ResponseError is the body of every failed API call.
type ResponseError struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type APIError struct {
	Status  int
	Reason  string
	Message string
}

func (e *APIError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

type LoginResponse struct {
	Handle string `json:"handle"`
	Token  string `json:"token"`
}

type ResetPageResponse struct {
	Handle string `json:"handle"`
	Token  string `json:"token"`
}

type userResponse struct {
	User database.Account `json:"user"`
}

type usersResponse struct {
	Users []database.Account `json:"users"`
}

type NameFields struct {
	First *string `json:"first,omitempty"`
	Last  *string `json:"last,omitempty"`
}

type UserFields struct {
	Email    string      `json:"email,omitempty"`
	Phone    *string     `json:"phone,omitempty"`
	Password *string     `json:"password,omitempty"`
	IsActive *bool       `json:"isActive,omitempty"`
	Name     *NameFields `json:"name,omitempty"`
}

// Client calls the accounts REST API.
type Client struct {
	http *resty.Client
}

func NewClient(baseURL, token string) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetError(&ResponseError{}).
		OnAfterResponse(func(c *resty.Client, resp *resty.Response) error {
			if resp.StatusCode() < http.StatusBadRequest {
				return nil
			}

			apiErr := &APIError{Status: resp.StatusCode()}
			if body, ok := resp.Error().(*ResponseError); ok && body != nil {
				apiErr.Reason = body.Reason
				apiErr.Message = body.Message
			}
			return apiErr
		})

	if token != "" {
		c.SetAuthToken(token)
	}

	return &Client{http: c}
}

func (c *Client) Login(handle, password string) (*LoginResponse, error) {
	resp, err := c.http.R().
		SetBody(map[string]string{"handle": handle, "password": password}).
		SetResult(&LoginResponse{}).
		Post("/login")
	if err != nil {
		return nil, err
	}
	return resp.Result().(*LoginResponse), nil
}

func (c *Client) Signup(fields UserFields) (*database.Account, error) {
	return c.user(c.http.R().SetBody(fields), resty.MethodPost, "/signup")
}

func (c *Client) ForgotPassword(handle string) error {
	_, err := c.http.R().
		SetBody(map[string]string{"handle": handle}).
		Post("/forgotpassword")
	return err
}

func (c *Client) CheckResetToken(token string) (*ResetPageResponse, error) {
	resp, err := c.http.R().
		SetPathParam("token", token).
		SetResult(&ResetPageResponse{}).
		Get("/resetpassword/{token}")
	if err != nil {
		return nil, err
	}
	return resp.Result().(*ResetPageResponse), nil
}

func (c *Client) ResetPassword(token, password string) error {
	_, err := c.http.R().
		SetBody(map[string]string{"token": token, "password": password}).
		Post("/resetpassword")
	return err
}

func (c *Client) ListUsers() ([]database.Account, error) {
	resp, err := c.http.R().
		SetResult(&usersResponse{}).
		Get("/users")
	if err != nil {
		return nil, err
	}
	return resp.Result().(*usersResponse).Users, nil
}

func (c *Client) GetUser(id string) (*database.Account, error) {
	return c.user(c.http.R().SetPathParam("id", id), resty.MethodGet, "/user/{id}")
}

func (c *Client) CreateUser(fields UserFields) (*database.Account, error) {
	return c.user(c.http.R().SetBody(fields), resty.MethodPost, "/user")
}

func (c *Client) UpdateUser(id string, fields UserFields) (*database.Account, error) {
	return c.user(c.http.R().SetPathParam("id", id).SetBody(fields), resty.MethodPut, "/user/{id}")
}

func (c *Client) DeleteUser(id string) error {
	_, err := c.http.R().
		SetPathParam("id", id).
		Delete("/user/{id}")
	return err
}

func (c *Client) user(req *resty.Request, method, path string) (*database.Account, error) {
	resp, err := req.SetResult(&userResponse{}).Execute(method, path)
	if err != nil {
		return nil, err
	}
	return &resp.Result().(*userResponse).User, nil
}
