package user

import "testing"

func validCreate() CreateRequest {
	return CreateRequest{
		Username:  "maria",
		Email:     "maria@example.com",
		FirstName: "Maria",
		LastName:  "Souza",
		CPF:       "529.982.247-25",
		Phone:     "(11) 98765-4321",
		Password:  "s3cretpass",
		Role:      RolePromoter,
	}
}

func TestCreateRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*CreateRequest)
		wantErr string
	}{
		{name: "valid", modify: func(*CreateRequest) {}},
		{name: "missing username", modify: func(r *CreateRequest) { r.Username = " " }, wantErr: "username is required"},
		{name: "missing email", modify: func(r *CreateRequest) { r.Email = "" }, wantErr: "email is required"},
		{name: "invalid email", modify: func(r *CreateRequest) { r.Email = "bad" }, wantErr: "invalid email format"},
		{name: "missing first name", modify: func(r *CreateRequest) { r.FirstName = "" }, wantErr: "first_name is required"},
		{name: "missing last name", modify: func(r *CreateRequest) { r.LastName = "" }, wantErr: "last_name is required"},
		{name: "missing password", modify: func(r *CreateRequest) { r.Password = "" }, wantErr: "password is required"},
		{name: "short password", modify: func(r *CreateRequest) { r.Password = "short" }, wantErr: "password must be at least 8 characters"},
		{name: "invalid role", modify: func(r *CreateRequest) { r.Role = "admin" }, wantErr: "invalid role: must be promoter, analyst, or manager"},
		{name: "invalid cpf", modify: func(r *CreateRequest) { r.CPF = "12345678900" }, wantErr: "invalid cpf"},
		{name: "empty cpf allowed", modify: func(r *CreateRequest) { r.CPF = "" }},
		{name: "short phone", modify: func(r *CreateRequest) { r.Phone = "12345" }, wantErr: "phone must have 10 or 11 digits"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreate()
			tt.modify(&req)
			err := req.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error %q, got nil", tt.wantErr)
			}
			if got := err.Error(); got != tt.wantErr {
				t.Fatalf("error = %q, want %q", got, tt.wantErr)
			}
		})
	}
}

func TestCreateRequest_Normalize(t *testing.T) {
	req := validCreate()
	req.Email = "  Maria@Example.COM "
	req.Normalize()
	if req.Email != "maria@example.com" {
		t.Errorf("email = %q", req.Email)
	}
	if req.CPF != "52998224725" {
		t.Errorf("cpf = %q", req.CPF)
	}
	if req.Phone != "11987654321" {
		t.Errorf("phone = %q", req.Phone)
	}
}

func TestLoginRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     LoginRequest
		wantErr string
	}{
		{name: "username", req: LoginRequest{Username: "maria", Password: "secret"}},
		{name: "email", req: LoginRequest{Email: "a@b.com", Password: "secret"}},
		{name: "missing identity", req: LoginRequest{Password: "secret"}, wantErr: "username or email is required"},
		{name: "missing password", req: LoginRequest{Email: "a@b.com"}, wantErr: "password is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || err.Error() != tt.wantErr {
				t.Fatalf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoginRequest_Login(t *testing.T) {
	r := LoginRequest{Email: " A@B.com "}
	if got := r.Login(); got != "a@b.com" {
		t.Errorf("Login() = %q", got)
	}
	r.Username = "maria"
	if got := r.Login(); got != "maria" {
		t.Errorf("username should take precedence, got %q", got)
	}
}

func TestUpdateRequest(t *testing.T) {
	bad := Status("suspended")
	if err := (&UpdateRequest{Status: &bad}).Validate(); err == nil {
		t.Fatal("expected invalid status error")
	}

	u := User{FirstName: "Old", Status: StatusInactive, FailedLoginAttempts: 3}
	name := " New "
	active := StatusActive
	req := UpdateRequest{FirstName: &name, Status: &active}
	if err := req.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req.Apply(&u)
	if u.FirstName != "New" {
		t.Errorf("first name = %q", u.FirstName)
	}
	if !u.Active() || u.FailedLoginAttempts != 0 {
		t.Errorf("reactivation should reset lockout: %+v", u)
	}
}

func TestChangePasswordRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     ChangePasswordRequest
		wantErr string
	}{
		{name: "valid", req: ChangePasswordRequest{OldPassword: "old12345", NewPassword: "new12345"}},
		{name: "same", req: ChangePasswordRequest{OldPassword: "abc12345", NewPassword: "abc12345"}, wantErr: "new_password must differ from old_password"},
		{name: "no digit", req: ChangePasswordRequest{OldPassword: "old12345", NewPassword: "onlyletters"}, wantErr: "password must contain a letter and a digit"},
		{name: "too short", req: ChangePasswordRequest{OldPassword: "old12345", NewPassword: "a1"}, wantErr: "password must be at least 8 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || err.Error() != tt.wantErr {
				t.Fatalf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestFullName(t *testing.T) {
	u := User{FirstName: "Ana", LastName: "Lima"}
	if got := u.FullName(); got != "Ana Lima" {
		t.Errorf("FullName() = %q", got)
	}
}
