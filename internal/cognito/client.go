// client.go — клиент к AWS Cognito Identity Provider (admin API).
// Операции: CreateUser (создание учётной записи с постоянным паролем),
// UpdateEmail, DeleteUser. Используется сервисным слоем для синхронизации
// учётных записей с Identity Provider.
package cognito

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
)

// Ошибки Identity Provider.
var (
	// ErrUserExists — учётная запись с таким email уже существует.
	ErrUserExists = errors.New("учётная запись уже существует")
	// ErrUserNotFound — учётная запись не найдена.
	ErrUserNotFound = errors.New("учётная запись не найдена")
)

// API — подмножество операций Cognito admin API, используемое клиентом.
// Позволяет подменять SDK в тестах.
type API interface {
	AdminCreateUser(ctx context.Context, params *cognitoidentityprovider.AdminCreateUserInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.AdminCreateUserOutput, error)
	AdminSetUserPassword(ctx context.Context, params *cognitoidentityprovider.AdminSetUserPasswordInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.AdminSetUserPasswordOutput, error)
	AdminUpdateUserAttributes(ctx context.Context, params *cognitoidentityprovider.AdminUpdateUserAttributesInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.AdminUpdateUserAttributesOutput, error)
	AdminDeleteUser(ctx context.Context, params *cognitoidentityprovider.AdminDeleteUserInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.AdminDeleteUserOutput, error)
	DescribeUserPool(ctx context.Context, params *cognitoidentityprovider.DescribeUserPoolInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.DescribeUserPoolOutput, error)
}

// Client — клиент к Cognito User Pool.
type Client struct {
	api        API
	userPoolID string
	logger     *slog.Logger
}

// New создаёт клиент Cognito с SDK-конфигурацией по умолчанию.
// region — AWS регион, userPoolID — идентификатор User Pool.
func New(ctx context.Context, region, userPoolID string, logger *slog.Logger) (*Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("загрузка AWS конфигурации: %w", err)
	}

	return NewWithAPI(cognitoidentityprovider.NewFromConfig(cfg), userPoolID, logger), nil
}

// NewWithAPI создаёт клиент с готовой реализацией API (для тестов).
func NewWithAPI(api API, userPoolID string, logger *slog.Logger) *Client {
	return &Client{
		api:        api,
		userPoolID: userPoolID,
		logger:     logger.With(slog.String("component", "cognito_client")),
	}
}

// CreateUser создаёт учётную запись в User Pool с постоянным паролем
// и подтверждённым email. Возвращает sub созданной учётной записи.
func (c *Client) CreateUser(ctx context.Context, email, password string) (string, error) {
	out, err := c.api.AdminCreateUser(ctx, &cognitoidentityprovider.AdminCreateUserInput{
		UserPoolId: aws.String(c.userPoolID),
		Username:   aws.String(email),
		UserAttributes: []types.AttributeType{
			{Name: aws.String("email"), Value: aws.String(email)},
			{Name: aws.String("email_verified"), Value: aws.String("true")},
		},
		// Приветственное письмо не отправляем
		MessageAction: types.MessageActionTypeSuppress,
	})
	if err != nil {
		var exists *types.UsernameExistsException
		if errors.As(err, &exists) {
			return "", ErrUserExists
		}
		return "", fmt.Errorf("создание учётной записи: %w", err)
	}

	// Временный пароль меняем на постоянный, чтобы учётная запись
	// была сразу в состоянии CONFIRMED
	_, err = c.api.AdminSetUserPassword(ctx, &cognitoidentityprovider.AdminSetUserPasswordInput{
		UserPoolId: aws.String(c.userPoolID),
		Username:   aws.String(email),
		Password:   aws.String(password),
		Permanent:  true,
	})
	if err != nil {
		return "", fmt.Errorf("установка пароля: %w", err)
	}

	sub := extractSub(out.User)
	if sub == "" {
		return "", errors.New("ответ Identity Provider не содержит sub")
	}

	c.logger.Info("Учётная запись создана в Identity Provider",
		slog.String("sub", sub),
	)

	return sub, nil
}

// UpdateEmail обновляет email учётной записи в User Pool.
// username — идентификатор учётной записи (sub или email).
func (c *Client) UpdateEmail(ctx context.Context, username, newEmail string) error {
	_, err := c.api.AdminUpdateUserAttributes(ctx, &cognitoidentityprovider.AdminUpdateUserAttributesInput{
		UserPoolId: aws.String(c.userPoolID),
		Username:   aws.String(username),
		UserAttributes: []types.AttributeType{
			{Name: aws.String("email"), Value: aws.String(newEmail)},
			{Name: aws.String("email_verified"), Value: aws.String("true")},
		},
	})
	if err != nil {
		var notFound *types.UserNotFoundException
		if errors.As(err, &notFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("обновление email: %w", err)
	}

	return nil
}

// DeleteUser удаляет учётную запись из User Pool.
func (c *Client) DeleteUser(ctx context.Context, username string) error {
	_, err := c.api.AdminDeleteUser(ctx, &cognitoidentityprovider.AdminDeleteUserInput{
		UserPoolId: aws.String(c.userPoolID),
		Username:   aws.String(username),
	})
	if err != nil {
		var notFound *types.UserNotFoundException
		if errors.As(err, &notFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("удаление учётной записи: %w", err)
	}

	return nil
}

// CheckReady проверяет доступность admin API User Pool.
func (c *Client) CheckReady() (status, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := c.api.DescribeUserPool(ctx, &cognitoidentityprovider.DescribeUserPoolInput{
		UserPoolId: aws.String(c.userPoolID),
	})
	if err != nil {
		return "fail", fmt.Sprintf("User Pool недоступен: %v", err)
	}

	name := ""
	if out.UserPool != nil && out.UserPool.Name != nil {
		name = *out.UserPool.Name
	}
	return "ok", "User Pool доступен: " + name
}

// extractSub извлекает атрибут sub из ответа Identity Provider.
func extractSub(user *types.UserType) string {
	if user == nil {
		return ""
	}
	for _, attr := range user.Attributes {
		if attr.Name != nil && *attr.Name == "sub" && attr.Value != nil {
			return *attr.Value
		}
	}
	return ""
}
