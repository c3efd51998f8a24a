package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/frahmantamala/room-rental/internal"
	"github.com/frahmantamala/room-rental/internal/auth"
	"github.com/frahmantamala/room-rental/internal/core/database"
	"github.com/frahmantamala/room-rental/internal/core/datamodel/room"
	"github.com/frahmantamala/room-rental/internal/core/datamodel/user"
	roomrepo "github.com/frahmantamala/room-rental/internal/room/postgres"
	userrepo "github.com/frahmantamala/room-rental/internal/user/postgres"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample users and rooms for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlDB, db, err := database.Open(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer sqlDB.Close()

		ctx := context.Background()

		if clearData {
			for _, table := range []string{"notifications", "payments", "bookings", "rooms", "users"} {
				if err := db.Exec("DELETE FROM " + table).Error; err != nil {
					log.Fatalf("failed to clear %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing data")
		}

		hash, err := auth.HashPassword("password", cfg.Security.BCryptCost)
		if err != nil {
			log.Fatalf("failed to hash password: %v", err)
		}

		users := userrepo.NewUserRepository(db)
		seedUsers := []user.User{
			{Email: "admin@mail.com", Name: "Quan Tri", Role: string(internal.RoleAdmin)},
			{Email: "chunha@mail.com", Name: "Nguyen Van Chu", Phone: "0901234567", Address: "12 Nguyen Trai, Quan 1, TP.HCM", Role: string(internal.RoleLandlord)},
			{Email: "khach@mail.com", Name: "Tran Thi Khach", Phone: "0912345678", Role: string(internal.RoleTenant)},
		}

		ids := map[string]int64{}
		for _, u := range seedUsers {
			if existing, err := users.GetByEmail(ctx, u.Email); err == nil {
				fmt.Println("user already exists:", u.Email)
				ids[u.Role] = existing.ID
				continue
			}

			u.PasswordHash = hash
			u.IsActive = true
			if err := users.Create(ctx, &u); err != nil {
				log.Fatalf("failed to insert user %s: %v", u.Email, err)
			}
			ids[u.Role] = u.ID
			fmt.Println("Seeded user:", u.Email, "role:", u.Role)
		}

		var roomCount int64
		if err := db.Model(&room.Room{}).Count(&roomCount).Error; err != nil {
			log.Fatalf("failed to count rooms: %v", err)
		}
		if roomCount > 0 {
			fmt.Println("rooms already seeded")
			return
		}

		rooms := roomrepo.NewRoomRepository(db)
		landlordID := ids[string(internal.RoleLandlord)]
		seedRooms := []room.Room{
			{Title: "Phong tro Quan 1", Address: "45 Le Loi, Quan 1", City: "Ho Chi Minh", MonthlyRent: 3_500_000, Deposit: 3_500_000, Utilities: 500_000, MaxOccupants: 2},
			{Title: "Can ho mini Binh Thanh", Address: "88 Xo Viet Nghe Tinh, Binh Thanh", City: "Ho Chi Minh", MonthlyRent: 5_000_000, Deposit: 5_000_000, Utilities: 700_000, MaxOccupants: 3},
			{Title: "Phong Cau Giay", Address: "10 Tran Thai Tong, Cau Giay", City: "Ha Noi", MonthlyRent: 2_800_000, Deposit: 0, Utilities: 400_000, MaxOccupants: 1},
		}
		for _, rm := range seedRooms {
			rm.LandlordID = landlordID
			rm.Status = room.StatusActive
			rm.IsAvailable = true
			if err := rooms.Create(ctx, &rm); err != nil {
				log.Fatalf("failed to insert room %s: %v", rm.Title, err)
			}
			fmt.Printf("Seeded room: %s\n", rm.Title)
		}

		fmt.Println("Seed data created successfully")
	},
}
