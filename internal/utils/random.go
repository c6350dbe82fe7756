package utils

import (
	"math/rand"

	"github.com/mozillazg/go-pinyin"
	"github.com/sysu-ecnc-dev/makerspace-booking/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

var commonSurnames = []string{
	"王", "李", "张", "刘", "陈", "杨", "赵", "黄", "周", "吴",
	"徐", "孙", "胡", "朱", "高", "林", "何", "郭", "马", "罗",
}
var commonNameCharacters = []string{
	"伟", "强", "芳", "敏", "静", "丽", "刚", "杰", "娟", "勇",
	"艳", "涛", "明", "军", "磊", "洋", "勇", "霞", "飞", "玲",
	"超", "华", "平", "辉", "梅", "鑫", "龙", "鹏", "玉", "斌",
	"庆", "建", "丹", "彬", "凤", "旭", "宁", "乐", "成", "欣",
}

func GenerateRandomChineseName() string {
	surname := commonSurnames[rand.Intn(len(commonSurnames))]
	nameLength := rand.Intn(2) + 1
	name := ""

	for i := 0; i < nameLength; i++ {
		name += commonNameCharacters[rand.Intn(len(commonNameCharacters))]
	}
	return surname + name
}

var roles = []domain.Role{
	domain.RoleMember,
	domain.RoleManager,
	domain.RoleAdmin,
}

func GenerateRandomRole() domain.Role {
	return roles[rand.Intn(len(roles))]
}

var digits = "0123456789"

func GenerateUsernameFromChineseName(chineseName string) string {
	pinyinArray := pinyin.LazyConvert(chineseName, nil)
	username := ""

	for _, pinyin := range pinyinArray {
		length := rand.Intn(len(pinyin)) + 1
		username += pinyin[:length]
	}

	digitsLength := rand.Intn(3) + 1
	for i := 0; i < digitsLength; i++ {
		username += string(digits[rand.Intn(len(digits))])
	}

	return username
}

func GenerateRandomUser(password string, emailDomainName string) (*domain.User, error) {
	fullName := GenerateRandomChineseName()
	username := GenerateUsernameFromChineseName(fullName)
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     username,
		PasswordHash: string(passwordHash),
		FullName:     fullName,
		Email:        username + "@" + emailDomainName,
		Role:         GenerateRandomRole(),
	}

	return user, nil
}

var letters = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*")

func GenerateRandomPassword(length int) string {
	random_password := make([]rune, length)
	for i := range random_password {
		random_password[i] = letters[rand.Intn(len(letters))]
	}
	return string(random_password)
}

func GenerateRandomID(letterLength int, digitLength int) string {
	random_id := make([]rune, letterLength+digitLength)
	for i := range random_id {
		if i < letterLength {
			random_id[i] = letters[rand.Intn(len(letters))]
		} else {
			random_id[i] = rune(digits[rand.Intn(len(digits))])
		}
	}
	return string(random_id)
}

var machineNames = []string{
	"激光切割机", "3D打印机", "数控铣床", "台式车床", "热压机",
	"电路板雕刻机", "激光打标机", "真空成型机", "带锯床", "点焊机",
}

var machineLocations = []string{"创客空间A区", "创客空间B区", "金工房", "木工房", "电子实验室"}

// 考核时长从常见的几档里随机选取
var trainingDurations = []int32{30, 45, 60, 90, 120}

func GenerateRandomMachine() *domain.Machine {
	return &domain.Machine{
		Name:             machineNames[rand.Intn(len(machineNames))] + GenerateRandomID(0, 3),
		Description:      "设备描述" + GenerateRandomID(20, 10),
		Location:         machineLocations[rand.Intn(len(machineLocations))],
		TrainingDuration: trainingDurations[rand.Intn(len(trainingDurations))],
	}
}

// GenerateRandomAvailabilityRule 生成某天上午或下午的一段整点排班
func GenerateRandomAvailabilityRule(managerID int64, timezone string) *domain.AvailabilityRule {
	startHour := rand.Intn(10) + 8 // 8~17 点开始
	lengthHours := rand.Intn(4) + 1

	return &domain.AvailabilityRule{
		ManagerID:   managerID,
		DayOfWeek:   int32(rand.Intn(7)),
		StartMinute: int32(startHour * 60),
		EndMinute:   int32((startHour + lengthHours) * 60),
		Timezone:    timezone,
		Notes:       "排班备注" + GenerateRandomID(10, 5),
	}
}
