package seed

import (
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/sysu-ecnc-dev/makerspace-booking/backend/internal/domain"
	"github.com/sysu-ecnc-dev/makerspace-booking/backend/internal/repository"
	"github.com/sysu-ecnc-dev/makerspace-booking/backend/internal/utils"
)

// SeedUsers 插入 n 个随机用户，所有用户共用同一个初始密码
func SeedUsers(r *repository.Repository, n int, password string, emailDomain string) {
	for i := 0; i < n; i++ {
		user, err := utils.GenerateRandomUser(password, emailDomain)
		if err != nil {
			slog.Error("生成随机用户失败", "error", err)
			continue
		}

		if err := r.CreateUser(user); err != nil {
			slog.Error("插入用户失败", "username", user.Username, "error", err)
			continue
		}

		slog.Info("已插入用户", "username", user.Username, "role", user.Role)
	}
}

// SeedMachines 插入 n 台随机设备，每台设备带 1~3 个培训项目
func SeedMachines(r *repository.Repository, n int) {
	for i := 0; i < n; i++ {
		machine := utils.GenerateRandomMachine()

		if err := r.CreateMachine(machine); err != nil {
			slog.Error("插入设备失败", "name", machine.Name, "error", err)
			continue
		}

		requirementsNum := rand.Intn(3) + 1
		for j := 0; j < requirementsNum; j++ {
			req := &domain.TrainingRequirement{
				MachineID: machine.ID,
				Title:     fmt.Sprintf("%s安全培训（%d）", machine.Name, j+1),
			}
			if err := r.CreateTrainingRequirement(req); err != nil {
				slog.Error("插入培训项目失败", "machineID", machine.ID, "error", err)
			}
		}

		slog.Info("已插入设备", "name", machine.Name, "trainingDuration", machine.TrainingDuration)
	}
}

// SeedAvailabilityRules 给所有设备管理员插入随机排班规则。
// 生成的规则先在内存里检查与已插入规则的重叠，避免触发数据库的冲突检查。
func SeedAvailabilityRules(r *repository.Repository, rulesPerManager int, timezone string) {
	users, err := r.GetAllUsers()
	if err != nil {
		slog.Error("获取用户列表失败", "error", err)
		return
	}

	inserted := make([]*domain.AvailabilityRule, 0)

	for _, user := range users {
		if user.Role != domain.RoleManager {
			continue
		}

		for i := 0; i < rulesPerManager; i++ {
			rule := utils.GenerateRandomAvailabilityRule(user.ID, timezone)
			rule.IsActive = true

			if err := utils.ValidateRuleAgainstExisting(rule, inserted); err != nil {
				continue
			}

			if err := r.CreateAvailabilityRule(rule); err != nil {
				slog.Error("插入排班规则失败", "managerID", user.ID, "error", err)
				continue
			}

			inserted = append(inserted, rule)
			slog.Info("已插入排班规则", "managerID", user.ID, "dayOfWeek", rule.DayOfWeek, "startMinute", rule.StartMinute)
		}
	}
}

// SeedTrainingCompletions 把所有会员标记为已完成全部培训，方便本地联调预约流程
func SeedTrainingCompletions(r *repository.Repository) {
	users, err := r.GetAllUsers()
	if err != nil {
		slog.Error("获取用户列表失败", "error", err)
		return
	}

	machines, err := r.GetAllMachines()
	if err != nil {
		slog.Error("获取设备列表失败", "error", err)
		return
	}

	for _, user := range users {
		if user.Role != domain.RoleMember {
			continue
		}

		for _, machine := range machines {
			titles, err := r.GetMissingTrainingTitles(user.ID, machine.ID)
			if err != nil {
				slog.Error("获取未完成培训失败", "userID", user.ID, "machineID", machine.ID, "error", err)
				continue
			}
			if len(titles) == 0 {
				continue
			}

			if err := completeAllTrainings(r, user.ID, machine.ID); err != nil {
				slog.Error("标记培训完成失败", "userID", user.ID, "machineID", machine.ID, "error", err)
			}
		}
	}

	slog.Info("培训完成记录插入完毕")
}

func completeAllTrainings(r *repository.Repository, userID, machineID int64) error {
	requirements, err := r.GetTrainingRequirementsByMachine(machineID)
	if err != nil {
		return err
	}

	for _, req := range requirements {
		if err := r.MarkTrainingCompleted(userID, req.ID); err != nil {
			return err
		}
	}
	return nil
}
