package api

import (
	"github.com/inkwell/inkwell-backend/internal/db/entities"
	"github.com/inkwell/inkwell-backend/internal/posts"
)

type PostDTO struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Slug          string   `json:"slug"`
	Content       string   `json:"content"`
	FeaturedImage string   `json:"featuredImage,omitempty"`
	Tags          []string `json:"tags"`
	AuthorID      string   `json:"authorId"`
	CreatedAt     int64    `json:"createdAt"`
	UpdatedAt     int64    `json:"updatedAt"`
}

func postToDTO(p *entities.Post) PostDTO {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return PostDTO{
		ID:            p.ID,
		Title:         p.Title,
		Slug:          p.Slug,
		Content:       p.Content,
		FeaturedImage: p.FeaturedImage,
		Tags:          tags,
		AuthorID:      p.AuthorID,
		CreatedAt:     p.CreatedAt.Unix(),
		UpdatedAt:     p.UpdatedAt.Unix(),
	}
}

type PostListDTO struct {
	Posts       []PostDTO `json:"posts"`
	TotalPages  int       `json:"totalPages"`
	CurrentPage int       `json:"currentPage"`
	TotalPosts  int64     `json:"totalPosts"`
}

func postPageToDTO(page *posts.Page) PostListDTO {
	dtos := make([]PostDTO, 0, len(page.Items))
	for _, p := range page.Items {
		dtos = append(dtos, postToDTO(p))
	}
	return PostListDTO{
		Posts:       dtos,
		TotalPages:  page.TotalPages,
		CurrentPage: page.CurrentPage,
		TotalPosts:  page.TotalCount,
	}
}

type UserDTO struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

func userToDTO(u *entities.User) UserDTO {
	return UserDTO{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
	}
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token     string  `json:"token"`
	ExpiresAt int64   `json:"expiresAt"`
	User      UserDTO `json:"user"`
}

type CreatePostRequest struct {
	Title         string   `json:"title"`
	Content       string   `json:"content"`
	Tags          []string `json:"tags"`
	FeaturedImage string   `json:"featuredImage"`
}

type UpdatePostRequest struct {
	Title         *string   `json:"title"`
	Content       *string   `json:"content"`
	Tags          *[]string `json:"tags"`
	FeaturedImage *string   `json:"featuredImage"`
}

type UploadResponse struct {
	Path string `json:"path"`
}

type ReadyDTO struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}
