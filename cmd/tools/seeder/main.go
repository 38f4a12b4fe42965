package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/alexedwards/argon2id"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// Seeds a development database with campus shoppers, vendors on every
// subscription plan, and a catalog spanning the three shipping modes.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	userIDs := seedUsers(db)
	vendorIDs := seedVendors(db, userIDs)
	seedProducts(db, vendorIDs)

	log.Println("Seeding completed successfully!")
}

func seedUsers(db *sql.DB) map[string]string {
	users := []struct {
		Name  string
		Email string
		Role  string
	}{
		{"Unimart Admin", "admin@unimart.ng", "admin"},
		{"Chinedu Okafor", "chinedu@unimart.ng", "vendor"},
		{"Amina Bello", "amina@unimart.ng", "vendor"},
		{"Tunde Adeyemi", "tunde@unimart.ng", "vendor"},
		{"Ngozi Eze", "ngozi@example.com", "shopper"},
		{"Ibrahim Musa", "ibrahim@example.com", "shopper"},
		{"Funke Alade", "funke@example.com", "shopper"},
		{"Emeka Nwosu", "emeka@example.com", "shopper"},
		{"Zainab Yusuf", "zainab@example.com", "shopper"},
	}

	hash, err := argon2id.CreateHash("password123", argon2id.DefaultParams)
	if err != nil {
		log.Fatalf("Failed to hash seed password: %v", err)
	}

	fmt.Println("Seeding Users...")
	ids := make(map[string]string, len(users))
	for _, u := range users {
		var id string
		err := db.QueryRow(`
			INSERT INTO users (name, email, password_hash, role)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name, role = EXCLUDED.role
			RETURNING id;
		`, u.Name, u.Email, hash, u.Role).Scan(&id)
		if err != nil {
			log.Printf("Failed to seed user %s: %v", u.Email, err)
			continue
		}
		ids[u.Email] = id
	}
	return ids
}

func seedVendors(db *sql.DB, userIDs map[string]string) map[string]string {
	vendors := []struct {
		OwnerEmail string
		Name       string
		Slug       string
		Location   string
		Plan       string
		Subaccount string
	}{
		{"chinedu@unimart.ng", "Chinedu Gadgets", "chinedu-gadgets", "Moremi Hall, UNILAG", "first_class", "ACCT_chinedugadgets01"},
		{"amina@unimart.ng", "Amina Kitchen", "amina-kitchen", "Queen Amina Hall, ABU", "economy", "ACCT_aminakitchen01"},
		{"tunde@unimart.ng", "Tunde Thrift", "tunde-thrift", "Sultan Bello Hall, UI", "free", "ACCT_tundethrift01"},
	}

	fmt.Println("Seeding Vendors...")
	ids := make(map[string]string, len(vendors))
	for _, v := range vendors {
		ownerID, ok := userIDs[v.OwnerEmail]
		if !ok {
			log.Printf("Missing owner for vendor %s", v.Name)
			continue
		}
		var id string
		err := db.QueryRow(`
			INSERT INTO vendors (owner_user_id, name, slug, location, subscription_plan, subaccount_code)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (slug) DO UPDATE SET
				location = EXCLUDED.location,
				subscription_plan = EXCLUDED.subscription_plan,
				subaccount_code = EXCLUDED.subaccount_code
			RETURNING id;
		`, ownerID, v.Name, v.Slug, v.Location, v.Plan, v.Subaccount).Scan(&id)
		if err != nil {
			log.Printf("Failed to seed vendor %s: %v", v.Name, err)
			continue
		}
		ids[v.Slug] = id
	}

	// Give the thrift store a limited-time promo so gift overrides show up in dev.
	if id, ok := ids["tunde-thrift"]; ok {
		_, err := db.Exec(`
			UPDATE vendors SET gift_plan = 'economy', gift_commission_rate = 9,
				gift_expires_at = NOW() + INTERVAL '30 days'
			WHERE id = $1;
		`, id)
		if err != nil {
			log.Printf("Failed to seed gift plan: %v", err)
		}
	}
	return ids
}

func seedProducts(db *sql.DB, vendorIDs map[string]string) {
	products := []struct {
		Vendor       string // empty means platform-sold
		Name         string
		Slug         string
		Description  string
		Price        float64
		ShippingFee  float64
		ShippingNear float64
		ShippingFar  float64
		ShippingMode string
		Stock        int
	}{
		{"chinedu-gadgets", "Oraimo FreePods 4", "oraimo-freepods-4", "Wireless earbuds, sealed in box", 28500, 500, 300, 800, "one_time", 40},
		{"chinedu-gadgets", "Anker 20000mAh Power Bank", "anker-20000-power-bank", "Fast charging, dual USB output", 35000, 500, 300, 800, "one_time", 25},
		{"chinedu-gadgets", "USB-C Charging Cable 2m", "usb-c-cable-2m", "Braided, supports 60W PD", 3500, 200, 150, 400, "per_unit", 200},
		{"amina-kitchen", "Jollof Rice and Chicken Pack", "jollof-rice-chicken-pack", "Party-style jollof, delivered hot", 3500, 400, 250, 700, "per_unit", 60},
		{"amina-kitchen", "Chin Chin Jar 500g", "chin-chin-jar-500g", "Crunchy, lightly sweetened", 2000, 300, 200, 500, "one_time", 100},
		{"amina-kitchen", "Zobo Drink 1L", "zobo-drink-1l", "Chilled hibiscus drink with ginger", 1200, 300, 200, 500, "per_unit", 80},
		{"tunde-thrift", "Vintage Denim Jacket", "vintage-denim-jacket", "UK-grade thrift, size M", 9500, 600, 400, 1000, "one_time", 8},
		{"tunde-thrift", "Corduroy Trousers", "corduroy-trousers", "Brown, size 32", 6000, 600, 400, 1000, "one_time", 12},
		{"", "Unimart Tote Bag", "unimart-tote-bag", "Official branded tote", 2500, 0, 0, 0, "one_time", 500},
		{"", "Unimart Hostel Planner", "unimart-hostel-planner", "Semester planner with timetable pages", 1800, 0, 0, 0, "one_time", 300},
	}

	fmt.Println("Seeding Products...")
	for _, p := range products {
		var vendorID sql.NullString
		if p.Vendor != "" {
			id, ok := vendorIDs[p.Vendor]
			if !ok {
				log.Printf("Missing vendor ID for %s", p.Vendor)
				continue
			}
			vendorID = sql.NullString{String: id, Valid: true}
		}

		_, err := db.Exec(`
			INSERT INTO products (vendor_id, name, slug, description, price,
				shipping_fee, shipping_fee_near, shipping_fee_far, shipping_mode, stock)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (slug) DO UPDATE SET
				price = EXCLUDED.price,
				shipping_fee = EXCLUDED.shipping_fee,
				shipping_fee_near = EXCLUDED.shipping_fee_near,
				shipping_fee_far = EXCLUDED.shipping_fee_far,
				shipping_mode = EXCLUDED.shipping_mode,
				stock = EXCLUDED.stock;
		`, vendorID, p.Name, p.Slug, p.Description, p.Price,
			p.ShippingFee, p.ShippingNear, p.ShippingFar, p.ShippingMode, p.Stock)
		if err != nil {
			log.Printf("Failed to seed product %s: %v", p.Name, err)
		}
	}
}
