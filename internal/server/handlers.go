package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"evopanel/internal/domain"
)

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

func idParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		Error(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (s *Server) registerCRUD(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.Get("/", s.listUsers)
		r.Post("/", s.createUser)
		r.Get("/{id}", s.getUser)
		r.Put("/{id}", s.updateUser)
		r.Put("/{id}/balance", s.updateUserBalance)
		r.Delete("/{id}", s.deleteUser)
	})
	r.Route("/contacts", func(r chi.Router) {
		r.Get("/", s.listContacts)
		r.Post("/", s.createContact)
		r.Get("/{id}", s.getContact)
		r.Put("/{id}", s.updateContact)
		r.Delete("/{id}", s.deleteContact)
	})
	r.Route("/groups", func(r chi.Router) {
		r.Get("/", s.listGroups)
		r.Post("/", s.createGroup)
		r.Put("/{id}", s.updateGroup)
		r.Delete("/{id}", s.deleteGroup)
	})
	r.Route("/categories", func(r chi.Router) {
		r.Get("/", s.listCategories)
		r.Post("/", s.createCategory)
		r.Put("/{id}", s.updateCategory)
		r.Delete("/{id}", s.deleteCategory)
	})
	r.Route("/products", func(r chi.Router) {
		r.Get("/", s.listProducts)
		r.Post("/", s.createProduct)
		r.Get("/{id}", s.getProduct)
		r.Put("/{id}", s.updateProduct)
		r.Delete("/{id}", s.deleteProduct)
	})
	r.Route("/gifts", func(r chi.Router) {
		r.Get("/", s.listGifts)
		r.Post("/", s.createGift)
		r.Put("/{id}", s.updateGift)
		r.Delete("/{id}", s.deleteGift)
	})
	r.Route("/texts", func(r chi.Router) {
		r.Get("/", s.listTexts)
		r.Post("/", s.createText)
		r.Get("/{id}", s.getText)
		r.Put("/{id}", s.updateText)
		r.Delete("/{id}", s.deleteText)
	})
}

// --- login ---

// login authenticates a panel operator by email. Unknown email and wrong
// password get the same answer.
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.Email == "" || body.Password == "" {
		Error(w, http.StatusBadRequest, "email and password are required")
		return
	}
	u, err := s.store.GetUserByEmail(r.Context(), body.Email)
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	if u == nil || subtle.ConstantTimeCompare([]byte(u.Password), []byte(body.Password)) != 1 {
		Error(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	u.Password = ""
	JSON(w, http.StatusOK, u)
}

// --- users ---

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	JSON(w, http.StatusOK, users)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var u domain.User
	if !decode(w, r, &u) {
		return
	}
	if u.Name == "" || u.Email == "" {
		Error(w, http.StatusBadRequest, "name and email are required")
		return
	}
	id, err := s.store.CreateUser(r.Context(), u)
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	u.ID = id
	u.Password = ""
	JSON(w, http.StatusCreated, u)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		Error(w, http.StatusBadRequest, "invalid id")
		return
	}
	u, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	if u == nil {
		Error(w, http.StatusNotFound, "user not found")
		return
	}
	u.Password = ""
	JSON(w, http.StatusOK, u)
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		Error(w, http.StatusBadRequest, "invalid id")
		return
	}
	var u domain.User
	if !decode(w, r, &u) {
		return
	}
	u.ID = id
	if err := s.store.UpdateUser(r.Context(), u); err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	JSON(w, http.StatusOK, map[string]int64{"id": id})
}

func (s *Server) updateUserBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		Error(w, http.StatusBadRequest, "invalid id")
		return
	}
	var body struct {
		Balance int64 `json:"balance"`
	}
	if !decode(w, r, &body) {
		return
	}
	if err := s.store.UpdateUserBalance(r.Context(), id, body.Balance); err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	JSON(w, http.StatusOK, map[string]int64{"id": id, "balance": body.Balance})
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		Error(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.store.DeleteUser(r.Context(), id); err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- contacts ---

func (s *Server) listContacts(w http.ResponseWriter, r *http.Request) {
	var (
		contacts []domain.Contact
		err      error
	)
	if g := r.URL.Query().Get("group_id"); g != "" {
		gid, perr := strconv.ParseInt(g, 10, 64)
		if perr != nil {
			Error(w, http.StatusBadRequest, "invalid group_id")
			return
		}
		contacts, err = s.store.ListContactsByGroup(r.Context(), gid)
	} else {
		contacts, err = s.store.ListContacts(r.Context())
	}
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	JSON(w, http.StatusOK, contacts)
}

func (s *Server) createContact(w http.ResponseWriter, r *http.Request) {
	var c domain.Contact
	if !decode(w, r, &c) {
		return
	}
	if c.Phone == "" {
		Error(w, http.StatusBadRequest, "phone is required")
		return
	}
	id, err := s.store.CreateContact(r.Context(), c)
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	c.ID = id
	JSON(w, http.StatusCreated, c)
}

func (s *Server) getContact(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		Error(w, http.StatusBadRequest, "invalid id")
		return
	}
	c, err := s.store.GetContact(r.Context(), id)
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	if c == nil {
		Error(w, http.StatusNotFound, "contact not found")
		return
	}
	JSON(w, http.StatusOK, c)
}

func (s *Server) updateContact(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		Error(w, http.StatusBadRequest, "invalid id")
		return
	}
	var c domain.Contact
	if !decode(w, r, &c) {
		return
	}
	c.ID = id
	if err := s.store.UpdateContact(r.Context(), c); err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	JSON(w, http.StatusOK, map[string]int64{"id": id})
}

func (s *Server) deleteContact(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		Error(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.store.DeleteContact(r.Context(), id); err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- groups ---

func (s *Server) listGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.store.ListGroups(r.Context())
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	JSON(w, http.StatusOK, groups)
}

func (s *Server) createGroup(w http.ResponseWriter, r *http.Request) {
	var g domain.Group
	if !decode(w, r, &g) {
		return
	}
	if g.Name == "" {
		Error(w, http.StatusBadRequest, "name is required")
		return
	}
	id, err := s.store.CreateGroup(r.Context(), g)
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	g.ID = id
	JSON(w, http.StatusCreated, g)
}

func (s *Server) updateGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		Error(w, http.StatusBadRequest, "invalid id")
		return
	}
	var g domain.Group
	if !decode(w, r, &g) {
		return
	}
	g.ID = id
	if err := s.store.UpdateGroup(r.Context(), g); err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	JSON(w, http.StatusOK, g)
}

func (s *Server) deleteGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		Error(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.store.DeleteGroup(r.Context(), id); err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- categories ---

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.store.ListCategories(r.Context())
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	JSON(w, http.StatusOK, cats)
}

func (s *Server) createCategory(w http.ResponseWriter, r *http.Request) {
	var c domain.Category
	if !decode(w, r, &c) {
		return
	}
	if c.Name == "" {
		Error(w, http.StatusBadRequest, "name is required")
		return
	}
	id, err := s.store.CreateCategory(r.Context(), c)
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	c.ID = id
	JSON(w, http.StatusCreated, c)
}

func (s *Server) updateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		Error(w, http.StatusBadRequest, "invalid id")
		return
	}
	var c domain.Category
	if !decode(w, r, &c) {
		return
	}
	c.ID = id
	if err := s.store.UpdateCategory(r.Context(), c); err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	JSON(w, http.StatusOK, c)
}

func (s *Server) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		Error(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.store.DeleteCategory(r.Context(), id); err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- products ---

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.store.ListProducts(r.Context())
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	JSON(w, http.StatusOK, products)
}

func (s *Server) createProduct(w http.ResponseWriter, r *http.Request) {
	var p domain.Product
	if !decode(w, r, &p) {
		return
	}
	if p.Name == "" {
		Error(w, http.StatusBadRequest, "name is required")
		return
	}
	id, err := s.store.CreateProduct(r.Context(), p)
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	p.ID = id
	JSON(w, http.StatusCreated, p)
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		Error(w, http.StatusBadRequest, "invalid id")
		return
	}
	p, err := s.store.GetProduct(r.Context(), id)
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	if p == nil {
		Error(w, http.StatusNotFound, "product not found")
		return
	}
	JSON(w, http.StatusOK, p)
}

func (s *Server) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		Error(w, http.StatusBadRequest, "invalid id")
		return
	}
	var p domain.Product
	if !decode(w, r, &p) {
		return
	}
	p.ID = id
	if err := s.store.UpdateProduct(r.Context(), p); err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	JSON(w, http.StatusOK, p)
}

func (s *Server) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		Error(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.store.DeleteProduct(r.Context(), id); err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- gifts ---

func (s *Server) listGifts(w http.ResponseWriter, r *http.Request) {
	gifts, err := s.store.ListGifts(r.Context())
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	JSON(w, http.StatusOK, gifts)
}

func (s *Server) createGift(w http.ResponseWriter, r *http.Request) {
	var g domain.Gift
	if !decode(w, r, &g) {
		return
	}
	if g.Name == "" {
		Error(w, http.StatusBadRequest, "name is required")
		return
	}
	id, err := s.store.CreateGift(r.Context(), g)
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	g.ID = id
	JSON(w, http.StatusCreated, g)
}

func (s *Server) updateGift(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		Error(w, http.StatusBadRequest, "invalid id")
		return
	}
	var g domain.Gift
	if !decode(w, r, &g) {
		return
	}
	g.ID = id
	if err := s.store.UpdateGift(r.Context(), g); err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	JSON(w, http.StatusOK, g)
}

func (s *Server) deleteGift(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		Error(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.store.DeleteGift(r.Context(), id); err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- texts ---

func (s *Server) listTexts(w http.ResponseWriter, r *http.Request) {
	texts, err := s.store.ListTexts(r.Context())
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	JSON(w, http.StatusOK, texts)
}

func (s *Server) createText(w http.ResponseWriter, r *http.Request) {
	var t domain.TextTemplate
	if !decode(w, r, &t) {
		return
	}
	if t.Name == "" || t.Content == "" {
		Error(w, http.StatusBadRequest, "name and content are required")
		return
	}
	id, err := s.store.CreateText(r.Context(), t)
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	t.ID = id
	JSON(w, http.StatusCreated, t)
}

func (s *Server) getText(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		Error(w, http.StatusBadRequest, "invalid id")
		return
	}
	t, err := s.store.GetText(r.Context(), id)
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	if t == nil {
		Error(w, http.StatusNotFound, "text not found")
		return
	}
	JSON(w, http.StatusOK, t)
}

func (s *Server) updateText(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		Error(w, http.StatusBadRequest, "invalid id")
		return
	}
	var t domain.TextTemplate
	if !decode(w, r, &t) {
		return
	}
	t.ID = id
	if err := s.store.UpdateText(r.Context(), t); err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	JSON(w, http.StatusOK, t)
}

func (s *Server) deleteText(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		Error(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.store.DeleteText(r.Context(), id); err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
