package routes

import (
	"shortstay-server/models"
	"shortstay-server/storage"
	"shortstay-server/utils"

	"github.com/kataras/iris/v12"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type RegisterUserInput struct {
	FirstName string `json:"firstName" validate:"required,max=256"`
	LastName  string `json:"lastName" validate:"required,max=256"`
	Email     string `json:"email" validate:"required,max=256,email"`
	Password  string `json:"password" validate:"required,min=8,max=256"`
}

func Register(ctx iris.Context) {
	var input RegisterUserInput
	err := ctx.ReadJSON(&input)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var existing models.User
	userExistsQuery := storage.DB.Where("email = ?", input.Email).Limit(1).Find(&existing)
	if userExistsQuery.Error != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	if userExistsQuery.RowsAffected > 0 {
		utils.CreateError(iris.StatusConflict, "Conflict", "Email already registered", ctx)
		return
	}

	hashedPassword, hashErr := hashAndSaltPassword(input.Password)
	if hashErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	newUser := models.User{
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Email:     input.Email,
		Password:  hashedPassword,
	}
	if err := storage.DB.Create(&newUser).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	returnUserWithTokens(newUser, ctx)
}

type LoginUserInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func Login(ctx iris.Context) {
	var input LoginUserInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var user models.User
	if err := storage.DB.Where("email = ?", input.Email).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.CreateError(iris.StatusUnauthorized, "Credentials Error", "Invalid email or password", ctx)
			return
		}
		utils.CreateInternalServerError(ctx)
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)) != nil {
		utils.CreateError(iris.StatusUnauthorized, "Credentials Error", "Invalid email or password", ctx)
		return
	}

	returnUserWithTokens(user, ctx)
}

// UpdatePayoutProfileInput selects one destination variant; the variant's
// fields must all be present before a payout can be released to the host.
type UpdatePayoutProfileInput struct {
	PayoutMethod        string `json:"payoutMethod" validate:"required,oneof=bank_account mobile_money"`
	BankAccountName     string `json:"bankAccountName"`
	BankAccountNumber   string `json:"bankAccountNumber"`
	BankName            string `json:"bankName"`
	MobileMoneyNumber   string `json:"mobileMoneyNumber"`
	MobileMoneyProvider string `json:"mobileMoneyProvider"`
}

func UpdatePayoutProfile(ctx iris.Context) {
	userID := ctx.Values().Get("userID").(uint)

	var input UpdatePayoutProfileInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var user models.User
	if err := storage.DB.First(&user, userID).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	user.PayoutMethod = input.PayoutMethod
	user.BankAccountName = input.BankAccountName
	user.BankAccountNumber = input.BankAccountNumber
	user.BankName = input.BankName
	user.MobileMoneyNumber = input.MobileMoneyNumber
	user.MobileMoneyProvider = input.MobileMoneyProvider

	if err := storage.DB.Save(&user).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{"success": true, "data": user})
}

func GetUser(ctx iris.Context) {
	userID := ctx.Values().Get("userID").(uint)

	var user models.User
	if err := storage.DB.First(&user, userID).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	ctx.JSON(user)
}

func returnUserWithTokens(user models.User, ctx iris.Context) {
	tokenPair, err := utils.CreateTokenPair(user.ID, user.Role)
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{
		"ID":           user.ID,
		"firstName":    user.FirstName,
		"lastName":     user.LastName,
		"email":        user.Email,
		"accessToken":  string(tokenPair.AccessToken),
		"refreshToken": string(tokenPair.RefreshToken),
	})
}

func hashAndSaltPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}
