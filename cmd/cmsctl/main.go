// Command cmsctl is the operator CLI: schema migrations, reference seeding,
// imports from the command line, dry runs and rollbacks.
package main

func main() {
	Execute()
}
