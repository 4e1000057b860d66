package httpapi

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/stockledger/inventory/internal/repo"
)

type contactRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

func registerContact[T any](register func(context.Context, repo.ContactInput) (T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req contactRequest
		if !bind(c, &req) {
			return
		}
		row, err := register(c.Request.Context(), repo.ContactInput{
			Username: req.Username,
			Name:     req.Name,
			Email:    req.Email,
			Phone:    req.Phone,
			Address:  req.Address,
		})
		if err != nil {
			RespondError(c, err)
			return
		}
		RespondCreated(c, row)
	}
}

func getContact[T any](get func(context.Context, uint) (T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		row, err := get(c.Request.Context(), id)
		if err != nil {
			RespondError(c, err)
			return
		}
		RespondOK(c, row)
	}
}

func listContacts[T any](key string, list func(context.Context) ([]T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := list(c.Request.Context())
		if err != nil {
			RespondError(c, err)
			return
		}
		RespondOK(c, gin.H{key: rows})
	}
}

func (s *Server) registerCustomer(c *gin.Context) { registerContact(s.directory.RegisterCustomer)(c) }
func (s *Server) getCustomer(c *gin.Context)      { getContact(s.directory.GetCustomer)(c) }
func (s *Server) listCustomers(c *gin.Context)    { listContacts("customers", s.directory.ListCustomers)(c) }

func (s *Server) registerSupplier(c *gin.Context) { registerContact(s.directory.RegisterSupplier)(c) }
func (s *Server) getSupplier(c *gin.Context)      { getContact(s.directory.GetSupplier)(c) }
func (s *Server) listSuppliers(c *gin.Context)    { listContacts("suppliers", s.directory.ListSuppliers)(c) }

func (s *Server) registerUser(c *gin.Context) { registerContact(s.directory.RegisterUser)(c) }
func (s *Server) getUser(c *gin.Context)      { getContact(s.directory.GetUser)(c) }
func (s *Server) listUsers(c *gin.Context)    { listContacts("users", s.directory.ListUsers)(c) }
